package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIdempotency_CreateGetDuplicateAndPurge(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := GetIdempotency(ctx, db, "u1", "POST /api/questions", "k1", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	rec, err := CreateIdempotency(ctx, db, "u1", "POST /api/questions", "k1", 201, []byte(`{"ok":true}`), time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	got, err := GetIdempotency(ctx, db, "u1", "POST /api/questions", "k1", time.Now().UTC())
	if err != nil || got.ID != rec.ID || got.Status != 201 || string(got.Body) != `{"ok":true}` {
		t.Fatalf("GetIdempotency = %+v, %v", got, err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "POST /api/questions", "k1", 201, nil, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Same key, other scope or user is independent.
	if _, err := CreateIdempotency(ctx, db, "u2", "POST /api/questions", "k1", 201, []byte("{}"), time.Hour); err != nil {
		t.Fatalf("other user: %v", err)
	}

	if _, err := GetIdempotency(ctx, db, "u1", "POST /api/questions", "k1", time.Now().UTC().Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record must not be returned, got %v", err)
	}
	n, err := PurgeExpiredIdempotency(ctx, db, time.Now().UTC().Add(2*time.Hour))
	if err != nil || n != 2 {
		t.Fatalf("purge = %d, %v", n, err)
	}
}

func TestIdempotency_ExpiredRecordIsReplaced(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := CreateIdempotency(ctx, db, "u1", "s", "k", 201, []byte("{}"), time.Nanosecond); err != nil {
		t.Fatalf("seed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := CreateIdempotency(ctx, db, "u1", "s", "k", 200, []byte("{}"), time.Hour); err != nil {
		t.Fatalf("expired record should be replaced, got %v", err)
	}
}

func TestIdempotency_EmptyBodyIsStored(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "POST /api/answers/a1/accept", "k2", 204, nil, time.Hour); err != nil {
		t.Fatalf("CreateIdempotency(nil body): %v", err)
	}
	got, err := GetIdempotency(ctx, db, "u1", "POST /api/answers/a1/accept", "k2", time.Now().UTC())
	if err != nil || got.Status != 204 || len(got.Body) != 0 {
		t.Fatalf("GetIdempotency = %+v, %v", got, err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "POST /api/answers/a1/accept", "k2", 204, nil, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}
