package domain

import "strings"

// TargetType identifies what a vote row points at.
type TargetType string

const (
	TargetQuestion TargetType = "question"
	TargetAnswer   TargetType = "answer"
)

// VoteType is the direction requested by a vote call.
type VoteType string

const (
	Upvote   VoteType = "upvote"
	Downvote VoteType = "downvote"
)

// ParseVoteType accepts "upvote"/"downvote" (case-insensitive) plus the
// short forms "up"/"down".
func ParseVoteType(s string) (VoteType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upvote", "up":
		return Upvote, true
	case "downvote", "down":
		return Downvote, true
	}
	return "", false
}

// Value is the stored row value for t: +1 or -1.
func (t VoteType) Value() int {
	if t == Downvote {
		return -1
	}
	return 1
}

// ToggleVote returns the user's vote value after applying t to current,
// where 0 means no vote. Repeating the same direction removes the vote;
// the opposite direction replaces it.
func ToggleVote(current int, t VoteType) int {
	v := t.Value()
	if current == v {
		return 0
	}
	return v
}

// SplitVotes partitions vote rows into upvoter and downvoter id sets.
func SplitVotes(votes []Vote) VoteSets {
	sets := VoteSets{Upvotes: []string{}, Downvotes: []string{}}
	for _, v := range votes {
		switch {
		case v.Value > 0:
			sets.Upvotes = append(sets.Upvotes, v.UserID)
		case v.Value < 0:
			sets.Downvotes = append(sets.Downvotes, v.UserID)
		}
	}
	return sets
}

// Count is |upvotes| - |downvotes|.
func (s VoteSets) Count() int { return len(s.Upvotes) - len(s.Downvotes) }
