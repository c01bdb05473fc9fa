package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/peerq/peerq-api/internal/domain"
)

// Question list orderings.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortVotes  = "votes"
	SortViews  = "views"
)

// QuestionFilter narrows ListQuestions.
type QuestionFilter struct {
	Tag      string
	Search   string
	AuthorID string
	Sort     string
}

// CreateQuestion inserts q together with its tag rows.
func CreateQuestion(ctx context.Context, db *gorm.DB, q *domain.Question) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = q.CreatedAt
	for i := range q.Tags {
		q.Tags[i].QuestionID = q.ID
	}
	return db.WithContext(ctx).Create(q).Error
}

// GetQuestion loads a question with its tags.
func GetQuestion(ctx context.Context, db *gorm.DB, id string) (*domain.Question, error) {
	var q domain.Question
	if err := db.WithContext(ctx).Preload("Tags").Where("id = ?", id).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQuestionForUpdate loads a question row with a write lock where the
// dialect supports it; SQLite ignores the locking clause.
func GetQuestionForUpdate(ctx context.Context, tx *gorm.DB, id string) (*domain.Question, error) {
	var q domain.Question
	q1 := tx.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		q1 = q1.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q1.Where("id = ?", id).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// questionMatch matches a likePattern against title, description or any tag.
// Tags are stored lowercased, so a plain LIKE suffices for them.
func questionMatch(db *gorm.DB) string {
	d := db.Dialector.Name()
	return ciLike(d, "title") + " OR " + ciLike(d, "description") + " OR " +
		`id IN (SELECT question_id FROM question_tags WHERE tag LIKE ? ESCAPE '\')`
}

func applyQuestionFilter(q *gorm.DB, f QuestionFilter) *gorm.DB {
	if t := strings.ToLower(strings.TrimSpace(f.Tag)); t != "" {
		q = q.Where("id IN (?)", q.Session(&gorm.Session{NewDB: true}).
			Model(&domain.QuestionTag{}).Select("question_id").Where("tag = ?", t))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := likePattern(s)
		q = q.Where(questionMatch(q), p, p, p)
	}
	if f.AuthorID != "" {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	return q
}

func questionOrder(sort string) string {
	switch sort {
	case SortOldest:
		return "created_at ASC, id ASC"
	case SortVotes:
		return "vote_count DESC, created_at DESC"
	case SortViews:
		return "views DESC, created_at DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

// ListQuestions returns one page of questions (tags preloaded) and the
// total number of matches.
func ListQuestions(ctx context.Context, db *gorm.DB, f QuestionFilter, offset, limit int) ([]domain.Question, int64, error) {
	q := applyQuestionFilter(db.WithContext(ctx).Model(&domain.Question{}), f).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Question
	err := q.Preload("Tags").Order(questionOrder(f.Sort)).Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// RecentQuestions returns the n newest questions.
func RecentQuestions(ctx context.Context, db *gorm.DB, n int) ([]domain.Question, error) {
	var out []domain.Question
	err := db.WithContext(ctx).Preload("Tags").Order("created_at DESC").Limit(n).Find(&out).Error
	return out, err
}

// IncrementViews bumps the view counter without touching updated_at.
func IncrementViews(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Model(&domain.Question{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateQuestionFields applies a partial update to a question.
func UpdateQuestionFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).Model(&domain.Question{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceTags swaps the tag set of a question.
func ReplaceTags(ctx context.Context, db *gorm.DB, questionID string, tags []string) error {
	tx := db.WithContext(ctx)
	if err := tx.Where("question_id = ?", questionID).Delete(&domain.QuestionTag{}).Error; err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}
	rows := make([]domain.QuestionTag, 0, len(tags))
	for _, t := range tags {
		rows = append(rows, domain.QuestionTag{QuestionID: questionID, Tag: t})
	}
	return tx.Create(&rows).Error
}

// SetAcceptedAnswer points the question at answerID (nil clears it) and
// keeps is_answered in step.
func SetAcceptedAnswer(ctx context.Context, db *gorm.DB, questionID string, answerID *string) error {
	return UpdateQuestionFields(ctx, db, questionID, map[string]any{
		"accepted_answer_id": answerID,
		"is_answered":        answerID != nil,
	})
}

// SetQuestionVoteCount stores the cached vote total.
func SetQuestionVoteCount(ctx context.Context, db *gorm.DB, id string, count int) error {
	return db.WithContext(ctx).Model(&domain.Question{}).Where("id = ?", id).
		UpdateColumn("vote_count", count).Error
}

// DeleteQuestion removes the question with its tags, answers and every
// vote on either. Run it inside a transaction.
func DeleteQuestion(ctx context.Context, tx *gorm.DB, id string) error {
	tx = tx.WithContext(ctx)
	var answerIDs []string
	if err := tx.Model(&domain.Answer{}).Where("question_id = ?", id).Pluck("id", &answerIDs).Error; err != nil {
		return err
	}
	if err := DeleteVotesFor(ctx, tx, domain.TargetAnswer, answerIDs); err != nil {
		return err
	}
	if err := DeleteVotesFor(ctx, tx, domain.TargetQuestion, []string{id}); err != nil {
		return err
	}
	if err := tx.Where("question_id = ?", id).Delete(&domain.Answer{}).Error; err != nil {
		return err
	}
	if err := tx.Where("question_id = ?", id).Delete(&domain.QuestionTag{}).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&domain.Question{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// QuestionIDsByAuthor lists the ids of every question written by authorID.
func QuestionIDsByAuthor(ctx context.Context, db *gorm.DB, authorID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&domain.Question{}).Where("author_id = ?", authorID).Pluck("id", &ids).Error
	return ids, err
}

// QuestionsByIDs loads questions keyed by id (tags preloaded).
func QuestionsByIDs(ctx context.Context, db *gorm.DB, ids []string) (map[string]domain.Question, error) {
	out := make(map[string]domain.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var qs []domain.Question
	if err := db.WithContext(ctx).Preload("Tags").Where("id IN ?", uniq(ids)).Find(&qs).Error; err != nil {
		return nil, err
	}
	for _, q := range qs {
		out[q.ID] = q
	}
	return out, nil
}

// PopularTags returns the limit most used tags.
func PopularTags(ctx context.Context, db *gorm.DB, limit int) ([]domain.TagCount, error) {
	var out []domain.TagCount
	err := db.WithContext(ctx).Model(&domain.QuestionTag{}).
		Select("tag, COUNT(*) AS count").
		Group("tag").
		Order("count DESC, tag ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// AnswerCounts returns the number of answers per question id.
func AnswerCounts(ctx context.Context, db *gorm.DB, questionIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		QuestionID string
		N          int
	}
	err := db.WithContext(ctx).Model(&domain.Answer{}).
		Select("question_id, COUNT(*) AS n").
		Where("question_id IN ?", uniq(questionIDs)).
		Group("question_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.QuestionID] = r.N
	}
	return out, nil
}
