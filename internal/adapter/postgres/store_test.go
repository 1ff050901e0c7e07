package postgres_test

import (
	"context"
	"os"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/TestForge/internal/adapter/postgres"
)

// setupStore creates a pgxpool connection, runs all migrations, and returns a
// ready-to-use Store. The pool is closed via t.Cleanup.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()

	// Run goose migrations first (uses embedded SQL files).
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewStore(pool)
}

// sessionPrefix returns a unique key prefix so tests never interfere.
func sessionPrefix(t *testing.T) string {
	t.Helper()
	return "manager:" + uuid.New().String() + ":"
}

func TestStore_SetGetRoundtrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	key := sessionPrefix(t) + "session"

	want := []byte(`{"id":"sess-1","status":"planning"}`)
	if err := s.Set(ctx, key, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	t.Cleanup(func() { _ = s.Delete(ctx, key) })

	got, ok, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected key to exist")
	}
	if string(got) != string(want) {
		t.Errorf("value = %q, want %q", got, want)
	}
}

func TestStore_GetMissingKey(t *testing.T) {
	s := setupStore(t)

	_, ok, err := s.Get(context.Background(), sessionPrefix(t)+"absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected miss for absent key")
	}
}

func TestStore_SetOverwrites(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	key := sessionPrefix(t) + "verification_result"

	if err := s.Set(ctx, key, []byte(`{"overall_score":0.5}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	t.Cleanup(func() { _ = s.Delete(ctx, key) })

	want := []byte(`{"overall_score":0.9}`)
	if err := s.Set(ctx, key, want); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	got, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != string(want) {
		t.Errorf("value = %q, want %q", got, want)
	}
}

func TestStore_DeleteMissingIsNoError(t *testing.T) {
	s := setupStore(t)

	if err := s.Delete(context.Background(), sessionPrefix(t)+"never-written"); err != nil {
		t.Fatalf("Delete of missing key should not error, got %v", err)
	}
}

func TestStore_KeysPrefixSorted(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	prefix := sessionPrefix(t)

	// Written out of order on purpose.
	for _, suffix := range []string{"scn-2", "scn-1", "scn-3"} {
		key := prefix + suffix
		if err := s.Set(ctx, key, []byte(`{}`)); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
		t.Cleanup(func() { _ = s.Delete(ctx, key) })
	}

	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}

	want := []string{prefix + "scn-1", prefix + "scn-2", prefix + "scn-3"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}

func TestStore_KeysOtherPrefixExcluded(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	prefixA := sessionPrefix(t)
	prefixB := sessionPrefix(t)

	keyA := prefixA + "session"
	keyB := prefixB + "session"
	for _, key := range []string{keyA, keyB} {
		if err := s.Set(ctx, key, []byte(`{}`)); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}
	t.Cleanup(func() {
		_ = s.Delete(ctx, keyA)
		_ = s.Delete(ctx, keyB)
	})

	keys, err := s.Keys(ctx, prefixA)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != keyA {
		t.Errorf("keys = %v, want [%s]", keys, keyA)
	}
}

func TestStore_Ping(t *testing.T) {
	s := setupStore(t)

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
