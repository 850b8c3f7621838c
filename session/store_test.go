package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, "tst", time.Hour), mr
}

func TestCreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u1", "203.0.113.9", "curl/8.0")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("expected session id")
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "u1" || got.SourceIP != "203.0.113.9" || got.UserAgent != "curl/8.0" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.LastSeenAt.IsZero() {
		t.Fatal("timestamps not set")
	}
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHasChecksOwnership(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := store.Has(ctx, "u1", sess.ID)
	if err != nil || !ok {
		t.Fatalf("Has(owner) = %v, %v", ok, err)
	}
	ok, err = store.Has(ctx, "u2", sess.ID)
	if err != nil || ok {
		t.Fatalf("Has(other user) = %v, %v; want false", ok, err)
	}
}

func TestRemoveAllAndExcept(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var keep string
	for i := 0; i < 3; i++ {
		sess, err := store.Create(ctx, "u1", "", "")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		keep = sess.ID
	}

	n, err := store.RemoveAllExcept(ctx, "u1", keep)
	if err != nil {
		t.Fatalf("RemoveAllExcept: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed = %d, want 2", n)
	}

	sessions, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != keep {
		t.Fatalf("surviving sessions: %+v", sessions)
	}

	n, err = store.RemoveAll(ctx, "u1")
	if err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
	sessions, err = store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(sessions))
	}
}

func TestListPrunesExpired(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Index set outlives the session key here, List must prune it.
	mr.Del(store.sessionKey(sess.ID))

	sessions, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected stale session pruned, got %+v", sessions)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	in := Session{
		ID:         "sid",
		UserID:     "uid",
		SourceIP:   "198.51.100.7",
		UserAgent:  "Mozilla/5.0",
		CreatedAt:  time.Unix(1700000000, 0).UTC(),
		LastSeenAt: time.Unix(1700000100, 0).UTC(),
	}

	data, err := encodeSession(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decodeSession(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}
}

func TestCodecRejectsCorruptRecords(t *testing.T) {
	if _, err := decodeSession(nil); err == nil {
		t.Fatal("empty record accepted")
	}
	if _, err := decodeSession([]byte{99, 0, 0, 0}); err == nil {
		t.Fatal("unknown version accepted")
	}

	data, err := encodeSession(Session{ID: "a", UserID: "b"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := decodeSession(data[:len(data)-1]); err == nil {
		t.Fatal("truncated record accepted")
	}
}
