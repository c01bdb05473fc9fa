package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peerq/peerq-api/internal/domain"
)

func TestCreateAndGetQuestion_WithTags(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "ann", domain.RoleUser)
	q := seedQuestion(t, db, u.ID, "Goroutines", "go", "concurrency")

	got, err := GetQuestion(context.Background(), db, q.ID)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if len(got.Tags) != 2 {
		t.Fatalf("tags = %+v", got.Tags)
	}
	if _, err := GetQuestion(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListQuestions_SortTagSearch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "ben", domain.RoleUser)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	titles := []string{"Alpha channels", "Beta maps", "Gamma_slices"}
	var ids []string
	for i, title := range titles {
		q := &domain.Question{Title: title, Slug: title, Description: "d", AuthorID: u.ID, CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Tags: []domain.QuestionTag{{Tag: "go"}}}
		if i == 0 {
			q.Tags = append(q.Tags, domain.QuestionTag{Tag: "channels"})
		}
		if err := CreateQuestion(ctx, db, q); err != nil {
			t.Fatalf("seed: %v", err)
		}
		ids = append(ids, q.ID)
	}
	_ = SetQuestionVoteCount(ctx, db, ids[1], 5)
	_ = IncrementViews(ctx, db, ids[0])

	newest, total, err := ListQuestions(ctx, db, QuestionFilter{}, 0, 10)
	if err != nil || total != 3 || newest[0].ID != ids[2] {
		t.Fatalf("newest: total=%d first=%v err=%v", total, newest, err)
	}
	oldest, _, _ := ListQuestions(ctx, db, QuestionFilter{Sort: SortOldest}, 0, 10)
	if oldest[0].ID != ids[0] {
		t.Fatalf("oldest first = %s", oldest[0].ID)
	}
	votes, _, _ := ListQuestions(ctx, db, QuestionFilter{Sort: SortVotes}, 0, 10)
	if votes[0].ID != ids[1] {
		t.Fatalf("votes first = %s", votes[0].ID)
	}
	views, _, _ := ListQuestions(ctx, db, QuestionFilter{Sort: SortViews}, 0, 10)
	if views[0].ID != ids[0] {
		t.Fatalf("views first = %s", views[0].ID)
	}

	tagged, total, _ := ListQuestions(ctx, db, QuestionFilter{Tag: "Channels"}, 0, 10)
	if total != 1 || tagged[0].ID != ids[0] || len(tagged[0].Tags) != 2 {
		t.Fatalf("tag filter: total=%d %+v", total, tagged)
	}

	found, total, _ := ListQuestions(ctx, db, QuestionFilter{Search: "MAPS"}, 0, 10)
	if total != 1 || found[0].ID != ids[1] {
		t.Fatalf("search: total=%d %+v", total, found)
	}
	// "_" must be literal, not a single-char wildcard.
	lit, total, _ := ListQuestions(ctx, db, QuestionFilter{Search: "a_s"}, 0, 10)
	if total != 1 || lit[0].ID != ids[2] {
		t.Fatalf("escaped search: total=%d %+v", total, lit)
	}

	page, total, _ := ListQuestions(ctx, db, QuestionFilter{}, 2, 2)
	if total != 3 || len(page) != 1 || page[0].ID != ids[0] {
		t.Fatalf("paging: total=%d %+v", total, page)
	}
}

func TestIncrementViews_NotFound(t *testing.T) {
	db := newTestDB(t)
	if err := IncrementViews(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceTags_AndPopularTags(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "cat", domain.RoleUser)
	q1 := seedQuestion(t, db, u.ID, "One", "go", "sql")
	seedQuestion(t, db, u.ID, "Two", "go")

	if err := ReplaceTags(ctx, db, q1.ID, []string{"rust"}); err != nil {
		t.Fatalf("ReplaceTags: %v", err)
	}
	tags, err := PopularTags(ctx, db, 20)
	if err != nil {
		t.Fatalf("PopularTags: %v", err)
	}
	want := []domain.TagCount{{Tag: "go", Count: 1}, {Tag: "rust", Count: 1}}
	if len(tags) != len(want) {
		t.Fatalf("tags = %+v", tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags[%d] = %+v; want %+v", i, tags[i], want[i])
		}
	}
}

func TestDeleteQuestion_RemovesAnswersTagsAndVotes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "dan", domain.RoleUser)
	q := seedQuestion(t, db, u.ID, "Doomed", "go")
	a := &domain.Answer{QuestionID: q.ID, AuthorID: u.ID, Content: "c"}
	if err := CreateAnswer(ctx, db, a); err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	_ = SetVote(ctx, db, domain.TargetQuestion, q.ID, u.ID, 1)
	_ = SetVote(ctx, db, domain.TargetAnswer, a.ID, u.ID, -1)

	if err := DeleteQuestion(ctx, db, q.ID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	for _, m := range []any{&domain.Answer{}, &domain.QuestionTag{}, &domain.Vote{}} {
		var n int64
		db.Model(m).Count(&n)
		if n != 0 {
			t.Fatalf("%T rows left: %d", m, n)
		}
	}
	if err := DeleteQuestion(ctx, db, q.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnswerCountsAndAcceptedPointer(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "eve", domain.RoleUser)
	q := seedQuestion(t, db, u.ID, "Counted")
	for i := 0; i < 2; i++ {
		if err := CreateAnswer(ctx, db, &domain.Answer{QuestionID: q.ID, AuthorID: u.ID, Content: "c"}); err != nil {
			t.Fatalf("CreateAnswer: %v", err)
		}
	}
	counts, err := AnswerCounts(ctx, db, []string{q.ID, "none"})
	if err != nil || counts[q.ID] != 2 || counts["none"] != 0 {
		t.Fatalf("AnswerCounts = %v, %v", counts, err)
	}

	aid := "a-x"
	if err := SetAcceptedAnswer(ctx, db, q.ID, &aid); err != nil {
		t.Fatalf("SetAcceptedAnswer: %v", err)
	}
	got, _ := GetQuestion(ctx, db, q.ID)
	if !got.IsAnswered || got.AcceptedAnswerID == nil || *got.AcceptedAnswerID != aid {
		t.Fatalf("accepted pointer not set: %+v", got)
	}
	if err := SetAcceptedAnswer(ctx, db, q.ID, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ = GetQuestion(ctx, db, q.ID)
	if got.IsAnswered || got.AcceptedAnswerID != nil {
		t.Fatalf("accepted pointer not cleared: %+v", got)
	}
}
