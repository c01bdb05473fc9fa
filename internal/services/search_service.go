package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/repo"
	"github.com/peerq/peerq-api/internal/utils"
)

// Search tuning.
const (
	MinQueryLen        = 2
	DefaultSearchLimit = 5
	MaxSearchLimit     = 20
	TrendingWindow     = 7 * 24 * time.Hour

	recommendationLimit = 3
	matchingTagLimit    = 5
)

// SearchService implements the comprehensive search.
type SearchService struct {
	DB  *gorm.DB
	Now func() time.Time
}

// Recommendations accompany search results.
type Recommendations struct {
	MatchingTags      []domain.TagCount     `json:"matchingTags"`
	RecentQuestions   []domain.QuestionView `json:"recentQuestions"`
	TrendingQuestions []domain.QuestionView `json:"trendingQuestions"`
}

// SearchResult is the comprehensive search response.
type SearchResult struct {
	Questions       []domain.QuestionView `json:"questions"`
	Answers         []domain.AnswerView   `json:"answers"`
	TotalResults    int                   `json:"totalResults"`
	Recommendations Recommendations       `json:"recommendations"`
}

// Comprehensive matches q against questions (title, description, tags) and
// answers, and recommends related questions through matching tags plus the
// most viewed questions of the last week.
func (s *SearchService) Comprehensive(ctx context.Context, q string, limit int) (*SearchResult, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinQueryLen {
		return nil, ErrQueryTooShort
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	limit = utils.Clamp(limit, 1, MaxSearchLimit)

	ctx, span := otel.Tracer("services/SearchService").Start(ctx, "Comprehensive",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	qs, err := repo.SearchQuestions(ctx, s.DB, q, limit)
	if err != nil {
		return nil, err
	}
	as, err := repo.SearchAnswers(ctx, s.DB, q, limit)
	if err != nil {
		return nil, err
	}
	tags, err := repo.MatchingTags(ctx, s.DB, q, matchingTagLimit)
	if err != nil {
		return nil, err
	}

	exclude := make([]string, 0, len(qs))
	for _, x := range qs {
		exclude = append(exclude, x.ID)
	}
	tagNames := make([]string, 0, len(tags))
	for _, t := range tags {
		tagNames = append(tagNames, t.Tag)
	}
	recent, err := repo.QuestionsWithTags(ctx, s.DB, tagNames, exclude, recommendationLimit)
	if err != nil {
		return nil, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	trending, err := repo.TrendingQuestions(ctx, s.DB, now().UTC().Add(-TrendingWindow), recommendationLimit)
	if err != nil {
		return nil, err
	}

	res := &SearchResult{TotalResults: len(qs) + len(as)}
	if res.Questions, err = questionViews(ctx, s.DB, qs); err != nil {
		return nil, err
	}
	if res.Answers, err = answerViews(ctx, s.DB, as, true); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []domain.TagCount{}
	}
	res.Recommendations.MatchingTags = tags
	if res.Recommendations.RecentQuestions, err = questionViews(ctx, s.DB, recent); err != nil {
		return nil, err
	}
	if res.Recommendations.TrendingQuestions, err = questionViews(ctx, s.DB, trending); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", res.TotalResults))
	return res, nil
}
