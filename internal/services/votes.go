package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/repo"
)

// toggleVote applies voteType for userID on a target inside one transaction
// and stores the recomputed count on the target row.
func toggleVote(ctx context.Context, db *gorm.DB, tt domain.TargetType, targetID, userID string, vt domain.VoteType) (domain.VoteResult, error) {
	ctx, span := otel.Tracer("services/votes").Start(ctx, "ToggleVote",
		trace.WithAttributes(
			attribute.String("vote.target", string(tt)),
			attribute.String("vote.target_id", targetID),
			attribute.String("vote.type", string(vt)),
		))
	defer span.End()

	var (
		res     domain.VoteResult
		outcome string
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.CurrentVote(ctx, tx, tt, targetID, userID)
		if err != nil {
			return err
		}
		next := domain.ToggleVote(cur, vt)
		if err := repo.SetVote(ctx, tx, tt, targetID, userID, next); err != nil {
			return err
		}
		sets, err := recountVotes(ctx, tx, tt, targetID)
		if err != nil {
			return err
		}
		res = domain.VoteResult{VoteCount: sets.Count(), Votes: sets}
		switch {
		case next > 0:
			res.UserVote = domain.Upvote
		case next < 0:
			res.UserVote = domain.Downvote
		}
		switch {
		case next == 0:
			outcome = "removed"
		case cur == 0:
			outcome = "added"
		default:
			outcome = "switched"
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// A concurrent toggle by the same user won the insert.
			return domain.VoteResult{}, invalid("vote already recorded, retry")
		}
		return domain.VoteResult{}, err
	}
	votesTotal.WithLabelValues(string(tt), outcome).Inc()
	return res, nil
}

// recountVotes recomputes a target's vote sets and writes the cached count.
func recountVotes(ctx context.Context, tx *gorm.DB, tt domain.TargetType, targetID string) (domain.VoteSets, error) {
	votes, err := repo.VotesFor(ctx, tx, tt, []string{targetID})
	if err != nil {
		return domain.VoteSets{}, err
	}
	sets := domain.SplitVotes(votes[targetID])
	switch tt {
	case domain.TargetQuestion:
		err = repo.SetQuestionVoteCount(ctx, tx, targetID, sets.Count())
	case domain.TargetAnswer:
		err = repo.SetAnswerVoteCount(ctx, tx, targetID, sets.Count())
	}
	return sets, err
}

// deleteAnswerTx removes an answer and, when it was accepted, clears the
// question's acceptance.
func deleteAnswerTx(ctx context.Context, tx *gorm.DB, a *domain.Answer) error {
	if a.IsAccepted {
		err := repo.SetAcceptedAnswer(ctx, tx, a.QuestionID, nil)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
	}
	return repo.DeleteAnswer(ctx, tx, a.ID)
}
