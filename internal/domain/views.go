package domain

import "time"

// UserSummary is the public projection of an author or voter.
type UserSummary struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Avatar     string `json:"avatar,omitempty"`
	Reputation int    `json:"reputation"`
	Role       Role   `json:"role"`
}

// VoteSets are the user ids behind a vote count.
type VoteSets struct {
	Upvotes   []string `json:"upvotes"`
	Downvotes []string `json:"downvotes"`
}

// QuestionView is a question joined with its author, tags and votes.
type QuestionView struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Slug           string      `json:"slug"`
	Description    string      `json:"description"`
	Tags           []string    `json:"tags"`
	Author         UserSummary `json:"author"`
	Votes          VoteSets    `json:"votes"`
	VoteCount      int         `json:"voteCount"`
	Views          int         `json:"views"`
	IsAnswered     bool        `json:"isAnswered"`
	AcceptedAnswer *string     `json:"acceptedAnswer"`
	AnswerCount    int         `json:"answerCount"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// QuestionDetail is a question with its answers, accepted first.
type QuestionDetail struct {
	QuestionView
	Answers []AnswerView `json:"answers"`
}

// QuestionRef is the minimal question projection embedded in answer lists.
type QuestionRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// AnswerView is an answer joined with its author and votes.
type AnswerView struct {
	ID         string       `json:"id"`
	Content    string       `json:"content"`
	QuestionID string       `json:"questionId"`
	Question   *QuestionRef `json:"question,omitempty"`
	Author     UserSummary  `json:"author"`
	Votes      VoteSets     `json:"votes"`
	VoteCount  int          `json:"voteCount"`
	IsAccepted bool         `json:"isAccepted"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// VoteResult is returned after a vote toggle.
type VoteResult struct {
	VoteCount int      `json:"voteCount"`
	Votes     VoteSets `json:"votes"`
	// UserVote is the caller's vote after the toggle: "upvote", "downvote" or "".
	UserVote VoteType `json:"userVote"`
}

// TagCount is a tag with its usage count.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// Page is the pagination envelope returned next to list results. Total is
// the number of pages.
type Page struct {
	Current    int   `json:"current"`
	Total      int   `json:"total"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
	TotalItems int64 `json:"totalItems"`
}

// NewPage builds the envelope for page (1-based) of size limit over total items.
func NewPage(page, limit int, total int64) Page {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Page{
		Current:    page,
		Total:      pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
		TotalItems: total,
	}
}
