package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pupfi-arcade-backend/internal/store"
)

type doc struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  string           `json:"status"`
	Balance int64            `json:"balance"`
	Shares  map[string]int64 `json:"shares"`
	Tags    []string         `json:"tags"`
	Rev     int64            `json:"rev"`
	Created time.Time        `json:"created_at"`
	Updated time.Time        `json:"updated_at"`
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, store.NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	st, err := store.NewRedisStore("localhost:6379", "", 15)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer st.Close()

	runStoreSuite(t, st)
}

func runStoreSuite(t *testing.T, st store.Store) {
	ctx := context.Background()
	// Distinct collection per run keeps reruns against a shared Redis clean.
	col := fmt.Sprintf("suite-%d", time.Now().UnixNano())

	id, err := st.Insert(ctx, col, &doc{
		Name:    "alice",
		Status:  "waiting",
		Balance: 100,
		Shares:  map[string]int64{},
		Tags:    []string{"new"},
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	var got doc
	if err := st.FindByID(ctx, col, id, &got); err != nil {
		t.Fatalf("find by id failed: %v", err)
	}
	if got.ID != id || got.Rev != 1 || got.Balance != 100 {
		t.Errorf("unexpected document after insert: %+v", got)
	}
	if got.Created.IsZero() || got.Updated.IsZero() {
		t.Error("insert should stamp created_at and updated_at")
	}

	if err := st.FindByID(ctx, col, "missing", nil); !errors.Is(err, store.ErrNoDoc) {
		t.Errorf("expected ErrNoDoc, got %v", err)
	}

	// Insert with a caller-provided id is create-only.
	if _, err := st.Insert(ctx, col, &doc{ID: id, Name: "dup"}); !errors.Is(err, store.ErrConflict) {
		t.Errorf("duplicate id insert should conflict, got %v", err)
	}

	// FindOne by field equality.
	var found doc
	if err := st.FindOne(ctx, col, store.Filter{"name": "alice"}, &found); err != nil {
		t.Fatalf("find one failed: %v", err)
	}
	if found.ID != id {
		t.Errorf("find one returned wrong doc: %s", found.ID)
	}
	if err := st.FindOne(ctx, col, store.Filter{"name": "nobody"}, nil); !errors.Is(err, store.ErrNoDoc) {
		t.Errorf("expected ErrNoDoc for absent filter match, got %v", err)
	}

	// Guarded update: matching guard applies, stale guard conflicts.
	var updated doc
	err = st.UpdateAndReturn(ctx, col, id, store.Filter{"status": "waiting", "rev": got.Rev}, store.Patch{"status": "active", "tags": []string{"new", "started"}}, &updated)
	if err != nil {
		t.Fatalf("guarded update failed: %v", err)
	}
	if updated.Status != "active" || updated.Rev != 2 || len(updated.Tags) != 2 {
		t.Errorf("unexpected document after update: %+v", updated)
	}
	err = st.UpdateAndReturn(ctx, col, id, store.Filter{"rev": got.Rev}, store.Patch{"status": "finished"}, nil)
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("stale guard should conflict, got %v", err)
	}

	// Increments, dotted paths and floors.
	var after doc
	err = st.IncrementAndReturn(ctx, col, id, store.Deltas{"balance": -40, "shares.bob": 40}, []string{"balance"}, &after)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if after.Balance != 60 || after.Shares["bob"] != 40 {
		t.Errorf("unexpected document after increment: %+v", after)
	}

	err = st.IncrementAndReturn(ctx, col, id, store.Deltas{"balance": -100}, []string{"balance"}, nil)
	if !errors.Is(err, store.ErrFloor) {
		t.Errorf("over-decrement should hit the floor, got %v", err)
	}
	var unchanged doc
	if err := st.FindByID(ctx, col, id, &unchanged); err != nil {
		t.Fatalf("find after floor failed: %v", err)
	}
	if unchanged.Balance != 60 {
		t.Errorf("floor violation must not mutate, balance = %d", unchanged.Balance)
	}

	// FindMany preserves insertion order and honors the limit.
	for i := 0; i < 3; i++ {
		if _, err := st.Insert(ctx, col, &doc{Name: fmt.Sprintf("user-%d", i), Status: "waiting"}); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}
	var waiting []doc
	if err := st.FindMany(ctx, col, store.Filter{"status": "waiting"}, 2, &waiting); err != nil {
		t.Fatalf("find many failed: %v", err)
	}
	if len(waiting) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(waiting))
	}
	if waiting[0].Name != "user-0" || waiting[1].Name != "user-1" {
		t.Errorf("find many should keep insertion order: %+v", waiting)
	}

	// Delete removes the document and its place in the listing.
	doomed, err := st.Insert(ctx, col, &doc{Name: "doomed", Status: "waiting"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := st.Delete(ctx, col, doomed); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := st.FindByID(ctx, col, doomed, nil); !errors.Is(err, store.ErrNoDoc) {
		t.Errorf("deleted doc should be gone, got %v", err)
	}
	if err := st.Delete(ctx, col, doomed); !errors.Is(err, store.ErrNoDoc) {
		t.Errorf("double delete should report ErrNoDoc, got %v", err)
	}
	if err := st.FindOne(ctx, col, store.Filter{"name": "doomed"}, nil); !errors.Is(err, store.ErrNoDoc) {
		t.Errorf("deleted doc should not be listed, got %v", err)
	}

	// Rate limiting counts per user and action within the window.
	action := fmt.Sprintf("act-%d", time.Now().UnixNano())
	for i := 0; i < 3; i++ {
		allowed, err := st.CheckRateLimit(ctx, "u1", action, 3, time.Minute)
		if err != nil {
			t.Fatalf("rate limit check failed: %v", err)
		}
		if !allowed {
			t.Errorf("call %d should be within the limit", i+1)
		}
	}
	allowed, err := st.CheckRateLimit(ctx, "u1", action, 3, time.Minute)
	if err != nil {
		t.Fatalf("rate limit check failed: %v", err)
	}
	if allowed {
		t.Error("fourth call should exceed the limit")
	}
	allowed, err = st.CheckRateLimit(ctx, "u2", action, 3, time.Minute)
	if err != nil {
		t.Fatalf("rate limit check failed: %v", err)
	}
	if !allowed {
		t.Error("a different user has its own window")
	}
}
