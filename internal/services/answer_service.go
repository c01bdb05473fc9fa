package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/repo"
)

// AnswerService implements answers, their votes and acceptance. New answers
// and acceptances notify the affected author through Notifications.
type AnswerService struct {
	DB            *gorm.DB
	Notifications *NotificationService
}

// ListForQuestion returns a question's answers, accepted first.
func (s *AnswerService) ListForQuestion(ctx context.Context, questionID string) ([]domain.AnswerView, error) {
	if _, err := loadQuestion(ctx, s.DB, questionID); err != nil {
		return nil, err
	}
	as, err := repo.ListAnswersForQuestion(ctx, s.DB, questionID)
	if err != nil {
		return nil, err
	}
	return answerViews(ctx, s.DB, as, false)
}

// Create posts an answer and notifies the question author unless they
// answered their own question.
func (s *AnswerService) Create(ctx context.Context, actor *domain.User, questionID, content string) (*domain.AnswerView, error) {
	ctx, span := otel.Tracer("services/AnswerService").Start(ctx, "Create",
		trace.WithAttributes(attribute.String("question.id", questionID)))
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" || strings.TrimSpace(questionID) == "" {
		return nil, invalid("content and questionId are required")
	}
	q, err := loadQuestion(ctx, s.DB, questionID)
	if err != nil {
		return nil, err
	}
	a := &domain.Answer{QuestionID: q.ID, AuthorID: actor.ID, Content: content}
	if err := repo.CreateAnswer(ctx, s.DB, a); err != nil {
		return nil, err
	}
	if q.AuthorID != actor.ID {
		s.notify(ctx, &domain.Notification{
			UserID:     &q.AuthorID,
			CreatedBy:  actor.ID,
			Type:       domain.NotifyAnswer,
			Title:      "New answer",
			Message:    fmt.Sprintf("%s answered your question \"%s\"", actor.Username, q.Title),
			QuestionID: &q.ID,
			AnswerID:   &a.ID,
		}, actor.Username+" answered your question")
	}
	v, err := answerView(ctx, s.DB, *a)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Update replaces an answer's content (author or admin).
func (s *AnswerService) Update(ctx context.Context, actor *domain.User, id, content string) (*domain.AnswerView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content is required")
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(actor, a.AuthorID) {
		return nil, ErrForbidden
	}
	if err := repo.UpdateAnswerContent(ctx, s.DB, id, content); err != nil {
		return nil, err
	}
	if a, err = s.load(ctx, id); err != nil {
		return nil, err
	}
	v, err := answerView(ctx, s.DB, *a)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Delete removes an answer (author or admin). Deleting the accepted answer
// leaves its question unanswered.
func (s *AnswerService) Delete(ctx context.Context, actor *domain.User, id string) error {
	ctx, span := otel.Tracer("services/AnswerService").Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("answer.id", id)))
	defer span.End()

	a, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(actor, a.AuthorID) {
		return ErrForbidden
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteAnswerTx(ctx, tx, a)
	})
}

// Vote toggles the actor's vote on an answer.
func (s *AnswerService) Vote(ctx context.Context, userID, id, voteType string) (domain.VoteResult, error) {
	vt, ok := domain.ParseVoteType(voteType)
	if !ok {
		return domain.VoteResult{}, ErrInvalidVote
	}
	if _, err := s.load(ctx, id); err != nil {
		return domain.VoteResult{}, err
	}
	return toggleVote(ctx, s.DB, domain.TargetAnswer, id, userID, vt)
}

// Accept marks an answer as the accepted one of its question. Only the
// question author or an admin may accept; any previously accepted answer is
// unmarked in the same transaction. Accepting the current accepted answer
// again changes nothing.
func (s *AnswerService) Accept(ctx context.Context, actor *domain.User, id string) (*domain.AnswerView, error) {
	ctx, span := otel.Tracer("services/AnswerService").Start(ctx, "Accept",
		trace.WithAttributes(attribute.String("answer.id", id)))
	defer span.End()

	var (
		a *domain.Answer
		q *domain.Question
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if a, err = repo.GetAnswer(ctx, tx, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrAnswerNotFound
			}
			return err
		}
		if q, err = repo.GetQuestionForUpdate(ctx, tx, a.QuestionID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrQuestionNotFound
			}
			return err
		}
		if actor.ID != q.AuthorID && actor.Role != domain.RoleAdmin {
			return ErrOnlyAuthorCanAccept
		}
		if _, err := repo.ClearAccepted(ctx, tx, q.ID); err != nil {
			return err
		}
		if err := repo.MarkAccepted(ctx, tx, a.ID); err != nil {
			return err
		}
		return repo.SetAcceptedAnswer(ctx, tx, q.ID, &a.ID)
	})
	if err != nil {
		return nil, err
	}
	a.IsAccepted = true

	if a.AuthorID != actor.ID {
		s.notify(ctx, &domain.Notification{
			UserID:     &a.AuthorID,
			CreatedBy:  actor.ID,
			Type:       domain.NotifyAccept,
			Title:      "Answer accepted",
			Message:    fmt.Sprintf("%s accepted your answer to \"%s\"", actor.Username, q.Title),
			QuestionID: &q.ID,
			AnswerID:   &a.ID,
		}, actor.Username+" accepted your answer")
	}
	v, err := answerView(ctx, s.DB, *a)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// notify dispatches n; failures are logged, the triggering action stands.
func (s *AnswerService) notify(ctx context.Context, n *domain.Notification, live string) {
	if s.Notifications == nil {
		return
	}
	if err := s.Notifications.Dispatch(ctx, n, live); err != nil {
		log.Error().Err(err).Str("type", string(n.Type)).Msg("store notification failed")
	}
}

func (s *AnswerService) load(ctx context.Context, id string) (*domain.Answer, error) {
	a, err := repo.GetAnswer(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrAnswerNotFound
	}
	return a, err
}

func loadQuestion(ctx context.Context, db *gorm.DB, id string) (*domain.Question, error) {
	q, err := repo.GetQuestion(ctx, db, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrQuestionNotFound
	}
	return q, err
}
