package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/repo"
)

// deletedUser stands in for authors whose account no longer exists.
const deletedUser = "[deleted]"

func summaryOf(users map[string]domain.User, id string) domain.UserSummary {
	if u, ok := users[id]; ok {
		return u.Summary()
	}
	return domain.UserSummary{ID: id, Username: deletedUser}
}

// questionViews joins authors, vote sets and answer counts onto qs,
// preserving order. Tags must be preloaded.
func questionViews(ctx context.Context, db *gorm.DB, qs []domain.Question) ([]domain.QuestionView, error) {
	out := make([]domain.QuestionView, 0, len(qs))
	if len(qs) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(qs))
	authors := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
		authors = append(authors, q.AuthorID)
	}
	users, err := repo.UsersByIDs(ctx, db, authors)
	if err != nil {
		return nil, err
	}
	votes, err := repo.VotesFor(ctx, db, domain.TargetQuestion, ids)
	if err != nil {
		return nil, err
	}
	counts, err := repo.AnswerCounts(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for _, q := range qs {
		out = append(out, domain.QuestionView{
			ID:             q.ID,
			Title:          q.Title,
			Slug:           q.Slug,
			Description:    q.Description,
			Tags:           q.TagNames(),
			Author:         summaryOf(users, q.AuthorID),
			Votes:          domain.SplitVotes(votes[q.ID]),
			VoteCount:      q.VoteCount,
			Views:          q.Views,
			IsAnswered:     q.IsAnswered,
			AcceptedAnswer: q.AcceptedAnswerID,
			AnswerCount:    counts[q.ID],
			CreatedAt:      q.CreatedAt,
			UpdatedAt:      q.UpdatedAt,
		})
	}
	return out, nil
}

func questionView(ctx context.Context, db *gorm.DB, q domain.Question) (domain.QuestionView, error) {
	vs, err := questionViews(ctx, db, []domain.Question{q})
	if err != nil {
		return domain.QuestionView{}, err
	}
	return vs[0], nil
}

// answerViews joins authors and vote sets onto as. With withQuestion set
// each view also carries a reference to its question.
func answerViews(ctx context.Context, db *gorm.DB, as []domain.Answer, withQuestion bool) ([]domain.AnswerView, error) {
	out := make([]domain.AnswerView, 0, len(as))
	if len(as) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(as))
	authors := make([]string, 0, len(as))
	qids := make([]string, 0, len(as))
	for _, a := range as {
		ids = append(ids, a.ID)
		authors = append(authors, a.AuthorID)
		qids = append(qids, a.QuestionID)
	}
	users, err := repo.UsersByIDs(ctx, db, authors)
	if err != nil {
		return nil, err
	}
	votes, err := repo.VotesFor(ctx, db, domain.TargetAnswer, ids)
	if err != nil {
		return nil, err
	}
	var questions map[string]domain.Question
	if withQuestion {
		if questions, err = repo.QuestionsByIDs(ctx, db, qids); err != nil {
			return nil, err
		}
	}
	for _, a := range as {
		v := domain.AnswerView{
			ID:         a.ID,
			Content:    a.Content,
			QuestionID: a.QuestionID,
			Author:     summaryOf(users, a.AuthorID),
			Votes:      domain.SplitVotes(votes[a.ID]),
			VoteCount:  a.VoteCount,
			IsAccepted: a.IsAccepted,
			CreatedAt:  a.CreatedAt,
			UpdatedAt:  a.UpdatedAt,
		}
		if q, ok := questions[a.QuestionID]; ok {
			v.Question = &domain.QuestionRef{ID: q.ID, Title: q.Title}
		}
		out = append(out, v)
	}
	return out, nil
}

func answerView(ctx context.Context, db *gorm.DB, a domain.Answer) (domain.AnswerView, error) {
	vs, err := answerViews(ctx, db, []domain.Answer{a}, false)
	if err != nil {
		return domain.AnswerView{}, err
	}
	return vs[0], nil
}
