package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/repo"
	"github.com/peerq/peerq-api/internal/utils"
)

// Question limits.
const (
	MaxTitleLen     = 300
	MaxTags         = 5
	MaxTagLen       = 30
	PopularTagCount = 20

	maxSlugLen = 320
)

var tagRE = regexp.MustCompile(`^[a-z0-9][a-z0-9+#.-]*$`)

// ValidTag reports whether t is an already normalized tag.
func ValidTag(t string) bool {
	return t != "" && len(t) <= MaxTagLen && tagRE.MatchString(t)
}

// NormalizeTags lowercases, trims and dedupes tags, dropping empties.
func NormalizeTags(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		t := strings.ToLower(strings.TrimSpace(raw))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		if !ValidTag(t) {
			return nil, invalid("invalid tag: " + t)
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > MaxTags {
		return nil, invalid("at most 5 tags are allowed")
	}
	return out, nil
}

// QuestionService implements question listing, CRUD and voting.
type QuestionService struct {
	DB *gorm.DB
}

// QuestionInput is the create/update payload. On update nil Tags keeps the
// current set.
type QuestionInput struct {
	Title       string
	Description string
	Tags        []string
}

// List returns a page of questions.
func (s *QuestionService) List(ctx context.Context, f repo.QuestionFilter, page, limit int) ([]domain.QuestionView, domain.Page, error) {
	ctx, span := otel.Tracer("services/QuestionService").Start(ctx, "List",
		trace.WithAttributes(attribute.String("sort", f.Sort), attribute.Int("page", page)))
	defer span.End()

	page, limit, offset := utils.Paginate(page, limit, 10, 100)
	qs, total, err := repo.ListQuestions(ctx, s.DB, f, offset, limit)
	if err != nil {
		return nil, domain.Page{}, err
	}
	views, err := questionViews(ctx, s.DB, qs)
	if err != nil {
		return nil, domain.Page{}, err
	}
	return views, domain.NewPage(page, limit, total), nil
}

// Get increments the view counter and returns the question with its answers.
func (s *QuestionService) Get(ctx context.Context, id string) (*domain.QuestionDetail, error) {
	ctx, span := otel.Tracer("services/QuestionService").Start(ctx, "Get",
		trace.WithAttributes(attribute.String("question.id", id)))
	defer span.End()

	if err := repo.IncrementViews(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	q, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := questionView(ctx, s.DB, *q)
	if err != nil {
		return nil, err
	}
	as, err := repo.ListAnswersForQuestion(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	answers, err := answerViews(ctx, s.DB, as, false)
	if err != nil {
		return nil, err
	}
	return &domain.QuestionDetail{QuestionView: v, Answers: answers}, nil
}

// Create stores a new question authored by authorID.
func (s *QuestionService) Create(ctx context.Context, authorID string, in QuestionInput) (*domain.QuestionView, error) {
	ctx, span := otel.Tracer("services/QuestionService").Start(ctx, "Create")
	defer span.End()

	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	if title == "" || desc == "" {
		return nil, invalid("title and description are required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return nil, invalid("title must be at most 300 characters")
	}
	tags, err := NormalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	q := &domain.Question{
		Title:       title,
		Slug:        makeSlug(title),
		Description: desc,
		AuthorID:    authorID,
	}
	for _, t := range tags {
		q.Tags = append(q.Tags, domain.QuestionTag{Tag: t})
	}
	if err := repo.CreateQuestion(ctx, s.DB, q); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("question.id", q.ID))
	v, err := questionView(ctx, s.DB, *q)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Update edits a question. Only its author or an admin may do so.
func (s *QuestionService) Update(ctx context.Context, actor *domain.User, id string, in QuestionInput) (*domain.QuestionView, error) {
	ctx, span := otel.Tracer("services/QuestionService").Start(ctx, "Update",
		trace.WithAttributes(attribute.String("question.id", id)))
	defer span.End()

	q, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(actor, q.AuthorID) {
		return nil, ErrForbidden
	}
	fields := map[string]any{}
	if t := strings.TrimSpace(in.Title); t != "" {
		if utf8.RuneCountInString(t) > MaxTitleLen {
			return nil, invalid("title must be at most 300 characters")
		}
		fields["title"] = t
		fields["slug"] = makeSlug(t)
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		fields["description"] = d
	}
	var tags []string
	if in.Tags != nil {
		if tags, err = NormalizeTags(in.Tags); err != nil {
			return nil, err
		}
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			if err := repo.UpdateQuestionFields(ctx, tx, id, fields); err != nil {
				return err
			}
		}
		if in.Tags != nil {
			return repo.ReplaceTags(ctx, tx, id, tags)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if q, err = s.load(ctx, id); err != nil {
		return nil, err
	}
	v, err := questionView(ctx, s.DB, *q)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Delete removes a question with its answers, tags and votes.
func (s *QuestionService) Delete(ctx context.Context, actor *domain.User, id string) error {
	ctx, span := otel.Tracer("services/QuestionService").Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("question.id", id)))
	defer span.End()

	q, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(actor, q.AuthorID) {
		return ErrForbidden
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.DeleteQuestion(ctx, tx, id)
	})
}

// Vote toggles the actor's vote on a question.
func (s *QuestionService) Vote(ctx context.Context, userID, id, voteType string) (domain.VoteResult, error) {
	vt, ok := domain.ParseVoteType(voteType)
	if !ok {
		return domain.VoteResult{}, ErrInvalidVote
	}
	if _, err := s.load(ctx, id); err != nil {
		return domain.VoteResult{}, err
	}
	return toggleVote(ctx, s.DB, domain.TargetQuestion, id, userID, vt)
}

// PopularTags returns the most used tags.
func (s *QuestionService) PopularTags(ctx context.Context) ([]domain.TagCount, error) {
	return repo.PopularTags(ctx, s.DB, PopularTagCount)
}

func (s *QuestionService) load(ctx context.Context, id string) (*domain.Question, error) {
	return loadQuestion(ctx, s.DB, id)
}

// canModify reports whether actor owns the content or is an admin.
func canModify(actor *domain.User, ownerID string) bool {
	return actor != nil && (actor.ID == ownerID || actor.Role == domain.RoleAdmin)
}

func makeSlug(title string) string {
	s := slug.Make(title)
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s != "" {
		return s
	}
	return "question"
}
