package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMemoryStoreEnsureGeneratesID(t *testing.T) {
	store := NewMemoryStore()

	id, created, err := store.Ensure(context.Background(), "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated session id")
	}
	if !created {
		t.Fatal("expected session to be created")
	}

	again, created, err := store.Ensure(context.Background(), id)
	if err != nil {
		t.Fatalf("ensure existing: %v", err)
	}
	if again != id {
		t.Fatalf("expected same id, got %s", again)
	}
	if created {
		t.Fatal("existing session must not be reported as created")
	}
}

func TestMemoryStoreAppendPreservesOrder(t *testing.T) {
	store := NewMemoryStore()
	id, _, err := store.Ensure(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	for i := 0; i < 5; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAgent
		}
		err := store.Append(context.Background(), id, Turn{Role: role, Content: fmt.Sprintf("msg-%d", i)})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	turns, err := store.History(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("expected 5 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		if turn.Content != fmt.Sprintf("msg-%d", i) {
			t.Fatalf("turn %d out of order: %q", i, turn.Content)
		}
	}
}

func TestMemoryStoreHistoryLimit(t *testing.T) {
	store := NewMemoryStore()
	id, _, err := store.Ensure(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := store.Append(context.Background(), id, Turn{Role: RoleUser, Content: fmt.Sprintf("msg-%d", i)}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	turns, err := store.History(context.Background(), id, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Content != "msg-7" || turns[2].Content != "msg-9" {
		t.Fatalf("expected the most recent turns in order, got %+v", turns)
	}
}

func TestMemoryStoreUnknownSession(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Append(context.Background(), "missing", Turn{Role: RoleUser, Content: "hi"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := store.History(context.Background(), "missing", 0); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemoryStoreHistoryReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	id, _, err := store.Ensure(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := store.Append(context.Background(), id, Turn{Role: RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	turns, err := store.History(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	turns[0].Content = "tampered"

	again, err := store.History(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if again[0].Content != "hi" {
		t.Fatalf("history must not expose internal state, got %q", again[0].Content)
	}
}
