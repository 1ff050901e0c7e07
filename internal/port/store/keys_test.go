package store_test

import (
	"testing"

	"github.com/Strob0t/TestForge/internal/port/store"
)

func TestKeyLayout(t *testing.T) {
	sid := "7c9e6679-7425-40de-944b-e07fc1f90ae7"

	cases := []struct {
		got  string
		want string
	}{
		{store.RequirementsKey(sid), "manager:" + sid + ":requirements"},
		{store.TestPlanKey(sid), "manager:" + sid + ":test_plan"},
		{store.SessionKey(sid), "manager:" + sid + ":session"},
		{store.VerificationKey(sid), "manager:" + sid + ":verification_result"},
		{store.ReportCacheKey(sid), "manager:" + sid + ":report"},
		{store.ScenarioResultKey("senior", sid, "sc-1"), "senior:" + sid + ":sc-1"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("key = %q, want %q", c.got, c.want)
		}
	}
}

func TestSessionIDFromKey(t *testing.T) {
	sid := "abc-123"

	if got, ok := store.SessionIDFromKey(store.SessionKey(sid)); !ok || got != sid {
		t.Errorf("SessionIDFromKey(session key) = %q, %v", got, ok)
	}

	for _, key := range []string{
		store.RequirementsKey(sid),
		store.VerificationKey(sid),
		"senior:" + sid + ":sc-1",
		"manager::session",
		"garbage",
	} {
		if _, ok := store.SessionIDFromKey(key); ok {
			t.Errorf("SessionIDFromKey(%q) matched, want no match", key)
		}
	}
}
