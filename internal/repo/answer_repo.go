package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
)

// answerOrder puts the accepted answer first, then by votes, then oldest.
const answerOrder = "is_accepted DESC, vote_count DESC, created_at ASC"

// CreateAnswer inserts a new answer.
func CreateAnswer(ctx context.Context, db *gorm.DB, a *domain.Answer) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.UpdatedAt = a.CreatedAt
	return db.WithContext(ctx).Omit("Question").Create(a).Error
}

// GetAnswer returns the answer with id or ErrNotFound.
func GetAnswer(ctx context.Context, db *gorm.DB, id string) (*domain.Answer, error) {
	var a domain.Answer
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAnswersForQuestion returns every answer of a question, accepted first.
func ListAnswersForQuestion(ctx context.Context, db *gorm.DB, questionID string) ([]domain.Answer, error) {
	var out []domain.Answer
	err := db.WithContext(ctx).Where("question_id = ?", questionID).Order(answerOrder).Find(&out).Error
	return out, err
}

// ListAnswersByAuthor returns a user's answers, newest first.
func ListAnswersByAuthor(ctx context.Context, db *gorm.DB, authorID string, offset, limit int) ([]domain.Answer, int64, error) {
	q := db.WithContext(ctx).Model(&domain.Answer{}).Where("author_id = ?", authorID).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Answer
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// RecentAnswers returns the n newest answers.
func RecentAnswers(ctx context.Context, db *gorm.DB, n int) ([]domain.Answer, error) {
	var out []domain.Answer
	err := db.WithContext(ctx).Order("created_at DESC").Limit(n).Find(&out).Error
	return out, err
}

// UpdateAnswerContent replaces an answer's body.
func UpdateAnswerContent(ctx context.Context, db *gorm.DB, id, content string) error {
	res := db.WithContext(ctx).Model(&domain.Answer{}).Where("id = ?", id).
		Updates(map[string]any{"content": content, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearAccepted unsets is_accepted on every answer of a question and
// returns how many rows flipped.
func ClearAccepted(ctx context.Context, db *gorm.DB, questionID string) (int64, error) {
	res := db.WithContext(ctx).Model(&domain.Answer{}).
		Where("question_id = ? AND is_accepted = ?", questionID, true).
		UpdateColumn("is_accepted", false)
	return res.RowsAffected, res.Error
}

// MarkAccepted sets is_accepted on one answer.
func MarkAccepted(ctx context.Context, db *gorm.DB, answerID string) error {
	res := db.WithContext(ctx).Model(&domain.Answer{}).Where("id = ?", answerID).
		UpdateColumn("is_accepted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAnswerVoteCount stores the cached vote total.
func SetAnswerVoteCount(ctx context.Context, db *gorm.DB, id string, count int) error {
	return db.WithContext(ctx).Model(&domain.Answer{}).Where("id = ?", id).
		UpdateColumn("vote_count", count).Error
}

// DeleteAnswer removes an answer and its votes. Run it inside a transaction.
func DeleteAnswer(ctx context.Context, tx *gorm.DB, id string) error {
	if err := DeleteVotesFor(ctx, tx, domain.TargetAnswer, []string{id}); err != nil {
		return err
	}
	res := tx.WithContext(ctx).Where("id = ?", id).Delete(&domain.Answer{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
