package sessionlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testSession(id string, started time.Time) *Session {
	return &Session{
		ID:          id,
		Role:        "server",
		LocalAddr:   "127.0.0.1:8443",
		RemoteAddr:  "127.0.0.1:51000",
		TLSVersion:  "TLS 1.3",
		CipherSuite: "TLS_AES_128_GCM_SHA256",
		BytesIn:     42,
		BytesOut:    1337,
		EOFKind:     "clean",
		StartedAt:   started,
		EndedAt:     started.Add(time.Second),
	}
}

func TestRecordAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		if err := store.Record(ctx, testSession(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record(%s): %v", id, err)
		}
	}

	sessions, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("List returned %d sessions, want 3", len(sessions))
	}
	// newest first
	if sessions[0].ID != "third" || sessions[2].ID != "first" {
		t.Errorf("unexpected order: %s, %s, %s", sessions[0].ID, sessions[1].ID, sessions[2].ID)
	}

	got := sessions[2]
	if got.CipherSuite != "TLS_AES_128_GCM_SHA256" || got.BytesOut != 1337 || got.EOFKind != "clean" {
		t.Errorf("session fields did not round-trip: %+v", got)
	}
}

func TestListLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.Record(ctx, testSession(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record(%s): %v", id, err)
		}
	}

	sessions, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("List(2) returned %d sessions", len(sessions))
	}
	if sessions[0].ID != "c" {
		t.Errorf("List(2)[0] = %s, want c", sessions[0].ID)
	}
}

func TestRecordGeneratesID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess := testSession("", time.Now())
	if err := store.Record(ctx, sess); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(sess.ID) != 8 {
		t.Errorf("generated ID %q, want 8 chars", sess.ID)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("Open with empty path did not fail")
	}
}
