package webapp

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"ssogate.org/internal/session"
)

type fakeResolver map[string]string

func (r fakeResolver) AppIDByCode(_ context.Context, code string) (string, error) {
	if id, ok := r[code]; ok {
		return id, nil
	}
	return "", ErrCodeNotFound
}

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis, fakeResolver) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	resolver := fakeResolver{"app-1": "id-1", "app-2": "id-2"}
	return NewService(session.NewRedisStoreFromClient(client), resolver), mr, resolver
}

func TestEvaluateDefaultOpen(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if !svc.Evaluate(ctx, "never-configured", Visitor) {
		t.Fatal("missing grant must read as public")
	}
	if !svc.Evaluate(ctx, "never-configured", "acct-1") {
		t.Fatal("missing grant must allow any subject")
	}
}

func TestEvaluatePublic(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SetAccessMode(ctx, "id-1", ModePublic, nil); err != nil {
		t.Fatalf("SetAccessMode: %v", err)
	}
	if !svc.Evaluate(ctx, "id-1", Visitor) {
		t.Fatal("public mode must allow visitors")
	}
}

func TestEvaluateAuthenticatedModes(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, mode := range []AccessMode{ModePrivateAll, ModeSSOVerified} {
		if err := svc.SetAccessMode(ctx, "id-1", mode, nil); err != nil {
			t.Fatalf("SetAccessMode(%s): %v", mode, err)
		}
		if svc.Evaluate(ctx, "id-1", Visitor) {
			t.Fatalf("%s must deny visitors", mode)
		}
		if !svc.Evaluate(ctx, "id-1", "u42") {
			t.Fatalf("%s must allow any authenticated subject", mode)
		}
	}
}

func TestEvaluateRestrictedAllowList(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	subjects := []Subject{
		{ID: "u1", Type: SubjectTypeAccount},
		{ID: "u2", Type: SubjectTypeAccount},
		{ID: "g1", Type: SubjectTypeGroup},
	}
	if err := svc.SetAccessMode(ctx, "id-1", ModeRestricted, subjects); err != nil {
		t.Fatalf("SetAccessMode: %v", err)
	}

	if !svc.Evaluate(ctx, "id-1", "u1") {
		t.Fatal("u1 is on the allow-list")
	}
	if !svc.Evaluate(ctx, "id-1", "u2") {
		t.Fatal("u2 is on the allow-list")
	}
	if svc.Evaluate(ctx, "id-1", "u3") {
		t.Fatal("u3 is not on the allow-list")
	}
	if svc.Evaluate(ctx, "id-1", Visitor) {
		t.Fatal("visitor is never on the allow-list")
	}
	// Group membership is stored but never consulted.
	if svc.Evaluate(ctx, "id-1", "g1") {
		t.Fatal("group ids must not grant access through the account list")
	}
	if got := svc.GroupAllowList(ctx, "id-1"); len(got) != 1 || got[0] != "g1" {
		t.Fatalf("group list not stored: %v", got)
	}
}

func TestEvaluateRestrictedEmptyListDenies(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SetAccessMode(ctx, "id-1", ModeRestricted, nil); err != nil {
		t.Fatalf("SetAccessMode: %v", err)
	}
	if svc.Evaluate(ctx, "id-1", "u1") {
		t.Fatal("empty allow-list must deny")
	}
}

func TestEvaluateByCodeUnknownCodeDenies(t *testing.T) {
	svc, _, _ := newTestService(t)
	if svc.EvaluateByCode(context.Background(), "missing", "u1") {
		t.Fatal("unknown code must deny")
	}
}

func TestEvaluateBatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SetAccessMode(ctx, "id-1", ModeSSOVerified, nil); err != nil {
		t.Fatalf("SetAccessMode: %v", err)
	}

	results := svc.EvaluateBatch(ctx, []string{"app-1", "app-2", "ghost"}, "u42")
	if !results["app-1"] {
		t.Fatal("app-1 allows authenticated subjects")
	}
	if !results["app-2"] {
		t.Fatal("app-2 has no grant and defaults open")
	}
	if results["ghost"] {
		t.Fatal("unresolvable code must deny")
	}

	results = svc.EvaluateBatch(ctx, []string{"app-1"}, Visitor)
	if results["app-1"] {
		t.Fatal("app-1 denies visitors under sso_verified")
	}
}

func TestClearWipesAllThreeKeys(t *testing.T) {
	svc, mr, _ := newTestService(t)
	ctx := context.Background()

	subjects := []Subject{{ID: "u1", Type: SubjectTypeAccount}, {ID: "g1", Type: SubjectTypeGroup}}
	if err := svc.SetAccessMode(ctx, "id-1", ModeRestricted, subjects); err != nil {
		t.Fatalf("SetAccessMode: %v", err)
	}
	if err := svc.Clear(ctx, "id-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if got := svc.AccessMode(ctx, "id-1"); got != ModePublic {
		t.Fatalf("cleared app must read public, got %s", got)
	}
	if got := svc.AllowedAccounts(ctx, "id-1"); len(got) != 0 {
		t.Fatalf("account list must be empty after clear: %v", got)
	}
	if got := svc.GroupAllowList(ctx, "id-1"); len(got) != 0 {
		t.Fatalf("group list must be empty after clear: %v", got)
	}
	if mr.Exists(session.AccessModeKey("id-1")) {
		t.Fatal("mode key must be deleted")
	}
}

func TestAccessModeBatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SetAccessMode(ctx, "id-1", ModePrivateAll, nil); err != nil {
		t.Fatalf("SetAccessMode: %v", err)
	}
	modes := svc.AccessModeBatch(ctx, []string{"id-1", "id-9"})
	if modes["id-1"] != ModePrivateAll {
		t.Fatalf("unexpected mode for id-1: %s", modes["id-1"])
	}
	if modes["id-9"] != ModePublic {
		t.Fatalf("absent grant must read public, got %s", modes["id-9"])
	}
}

func TestEvaluateStoreUnavailableDefaultsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(session.NewRedisStoreFromClient(client), fakeResolver{})
	mr.Close()

	// Mode read fails toward public, matching the no-grant-found case.
	if !svc.Evaluate(context.Background(), "id-1", Visitor) {
		t.Fatal("store failure must degrade to allow")
	}
	if got := svc.AccessMode(context.Background(), "id-1"); got != ModePublic {
		t.Fatalf("store failure must read public, got %s", got)
	}
}

func TestSetAccessModeStoreUnavailablePropagates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(session.NewRedisStoreFromClient(client), fakeResolver{})
	mr.Close()

	if err := svc.SetAccessMode(context.Background(), "id-1", ModePublic, nil); err == nil {
		t.Fatal("write against an unavailable store must fail")
	}
}
