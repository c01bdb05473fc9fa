package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/repo"
	"github.com/peerq/peerq-api/internal/utils"
)

// UserService serves public profiles and a user's own content.
type UserService struct {
	DB *gorm.DB
}

// PublicProfile is what anyone may see about a user.
type PublicProfile struct {
	domain.UserSummary
	Bio           string    `json:"bio"`
	CreatedAt     time.Time `json:"createdAt"`
	QuestionCount int64     `json:"questionCount"`
	AnswerCount   int64     `json:"answerCount"`
}

// Profile returns the public profile of id.
func (s *UserService) Profile(ctx context.Context, id string) (*PublicProfile, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	p := &PublicProfile{UserSummary: u.Summary(), Bio: u.Bio, CreatedAt: u.CreatedAt}
	if err := s.DB.WithContext(ctx).Model(&domain.Question{}).Where("author_id = ?", id).Count(&p.QuestionCount).Error; err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Answer{}).Where("author_id = ?", id).Count(&p.AnswerCount).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// Questions lists questions written by userID, newest first.
func (s *UserService) Questions(ctx context.Context, userID string, page, limit int) ([]domain.QuestionView, domain.Page, error) {
	page, limit, offset := utils.Paginate(page, limit, 20, 100)
	qs, total, err := repo.ListQuestions(ctx, s.DB, repo.QuestionFilter{AuthorID: userID, Sort: repo.SortNewest}, offset, limit)
	if err != nil {
		return nil, domain.Page{}, err
	}
	views, err := questionViews(ctx, s.DB, qs)
	if err != nil {
		return nil, domain.Page{}, err
	}
	return views, domain.NewPage(page, limit, total), nil
}

// Answers lists answers written by userID with their question titles.
func (s *UserService) Answers(ctx context.Context, userID string, page, limit int) ([]domain.AnswerView, domain.Page, error) {
	page, limit, offset := utils.Paginate(page, limit, 20, 100)
	as, total, err := repo.ListAnswersByAuthor(ctx, s.DB, userID, offset, limit)
	if err != nil {
		return nil, domain.Page{}, err
	}
	views, err := answerViews(ctx, s.DB, as, true)
	if err != nil {
		return nil, domain.Page{}, err
	}
	return views, domain.NewPage(page, limit, total), nil
}
