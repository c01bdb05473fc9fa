package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
)

// SearchQuestions returns up to limit questions whose title, description or
// tags contain q (case-insensitive), most voted first.
func SearchQuestions(ctx context.Context, db *gorm.DB, q string, limit int) ([]domain.Question, error) {
	p := likePattern(q)
	var out []domain.Question
	err := db.WithContext(ctx).Preload("Tags").
		Where(questionMatch(db), p, p, p).
		Order("vote_count DESC, created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SearchAnswers returns up to limit answers whose content contains q.
func SearchAnswers(ctx context.Context, db *gorm.DB, q string, limit int) ([]domain.Answer, error) {
	var out []domain.Answer
	err := db.WithContext(ctx).
		Where(ciLike(db.Dialector.Name(), "content"), likePattern(q)).
		Order("vote_count DESC, created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MatchingTags returns tags containing q with their usage counts.
func MatchingTags(ctx context.Context, db *gorm.DB, q string, limit int) ([]domain.TagCount, error) {
	var out []domain.TagCount
	err := db.WithContext(ctx).Model(&domain.QuestionTag{}).
		Select("tag, COUNT(*) AS count").
		Where(`tag LIKE ? ESCAPE '\'`, likePattern(q)).
		Group("tag").
		Order("count DESC, tag ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// QuestionsWithTags returns the newest questions carrying any of tags,
// skipping the ids in exclude.
func QuestionsWithTags(ctx context.Context, db *gorm.DB, tags, exclude []string, limit int) ([]domain.Question, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	sub := db.Session(&gorm.Session{NewDB: true}).WithContext(ctx).
		Model(&domain.QuestionTag{}).Select("question_id").Where("tag IN ?", tags)
	q := db.WithContext(ctx).Preload("Tags").Where("id IN (?)", sub)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var out []domain.Question
	err := q.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// TrendingQuestions returns the most viewed questions created since since.
func TrendingQuestions(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]domain.Question, error) {
	var out []domain.Question
	err := db.WithContext(ctx).Preload("Tags").
		Where("created_at >= ?", since).
		Order("views DESC, vote_count DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
