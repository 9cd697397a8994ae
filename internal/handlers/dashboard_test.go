package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/syncveil/apiserver/types"
)

func TestDashboardOverviewCounts(t *testing.T) {
	f := newFixture(t)
	token := f.signupAndVerify(t, "ada@example.com", "correct horse")

	resp := f.request(t, http.MethodGet, "/api/dashboard/", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	overview := decode[DashboardResponse](t, resp)
	if overview.VaultFiles != 0 || overview.BreachEvents != 0 {
		t.Fatalf("fresh account overview = %+v", overview)
	}
	if overview.ActiveSessions != 1 {
		t.Fatalf("active sessions = %d, want the login session", overview.ActiveSessions)
	}

	f.upload(t, token, "a.txt", "text/plain", []byte("aaa"))
	f.upload(t, token, "b.txt", "text/plain", []byte("bbb"))

	resp = f.request(t, http.MethodGet, "/api/dashboard/", token, nil)
	overview = decode[DashboardResponse](t, resp)
	if overview.VaultFiles != 2 {
		t.Fatalf("vault files = %d, want 2", overview.VaultFiles)
	}
}

func TestDashboardRequiresAuth(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodGet, "/api/dashboard/", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMonitorBreachListing(t *testing.T) {
	f := newFixture(t)
	token := f.signupAndVerify(t, "ada@example.com", "correct horse")

	me := f.request(t, http.MethodGet, "/auth/me", token, nil)
	user := decode[types.User](t, me)

	resp := f.request(t, http.MethodGet, "/api/monitor/breaches", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if events := decode[[]types.BreachEvent](t, resp); len(events) != 0 {
		t.Fatalf("fresh account has %d breach events", len(events))
	}

	_, err := f.store.BreachEvents().Create(context.Background(), types.BreachEvent{
		UserID:     user.ID,
		Kind:       types.BreachKindFailedLogin,
		Detail:     "failed login attempt",
		ObservedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed breach event: %v", err)
	}

	resp = f.request(t, http.MethodGet, "/api/monitor/breaches", token, nil)
	events := decode[[]types.BreachEvent](t, resp)
	if len(events) != 1 {
		t.Fatalf("breach events = %d, want 1", len(events))
	}
	if events[0].Kind != types.BreachKindFailedLogin {
		t.Fatalf("kind = %q", events[0].Kind)
	}

	overview := decode[DashboardResponse](t, f.request(t, http.MethodGet, "/api/dashboard/", token, nil))
	if overview.BreachEvents != 1 {
		t.Fatalf("dashboard breach count = %d, want 1", overview.BreachEvents)
	}
}
