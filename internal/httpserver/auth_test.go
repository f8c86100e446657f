package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/identity"
	customersvc "storefront/internal/service/customer"
)

var errTestBoom = errors.New("connection reset by peer")

func TestSignInMergesGuestCart(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/auth/sign-in", `{"email":"user@example.com","password":"Abcdefg1"}`, withGuest("guest-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if len(env.merger.calls) != 1 || env.merger.calls[0] != [2]string{"guest-1", "user-1"} {
		t.Fatalf("unexpected merge calls %+v", env.merger.calls)
	}
	guest := cookieNamed(rec, identity.GuestCookie)
	if guest == nil || guest.MaxAge >= 0 {
		t.Fatalf("expected guest cookie cleared, got %+v", guest)
	}
	auth := cookieNamed(rec, identity.AuthCookie)
	if auth == nil || auth.Value != "tok-new" {
		t.Fatalf("expected auth cookie, got %+v", auth)
	}
	if !strings.Contains(rec.Body.String(), `"retired":true`) {
		t.Fatalf("expected merge result in body: %s", rec.Body.String())
	}
}

func TestSignInWithoutGuestSkipsMerge(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/auth/sign-in", `{"email":"user@example.com","password":"Abcdefg1"}`)
	if rec.Code != http.StatusOK || len(env.merger.calls) != 0 {
		t.Fatalf("expected no merge, code=%d calls=%+v", rec.Code, env.merger.calls)
	}
}

func TestSignInMergeFailureKeepsGuestCookie(t *testing.T) {
	env := newTestEnv(t, nil)
	env.merger.err = errTestBoom
	rec := env.do(http.MethodPost, "/auth/sign-in", `{"email":"user@example.com","password":"Abcdefg1"}`, withGuest("guest-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("sign-in should still succeed, got %d", rec.Code)
	}
	if cookieNamed(rec, identity.GuestCookie) != nil {
		t.Fatalf("guest cookie must survive a failed merge")
	}
}

func TestSignInInvalidCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	env.customers.err = customersvc.ErrInvalidCredentials
	rec := env.do(http.MethodPost, "/auth/sign-in", `{"email":"user@example.com","password":"nope"}`, withGuest("guest-1"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(env.merger.calls) != 0 {
		t.Fatalf("merge must not run after a failed sign-in")
	}
}

func TestSignUpReportsFieldErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	verr := domain.NewValidationError("password", "must be at least 8 characters")
	verr.Add("email", "is invalid")
	env.customers.err = verr
	rec := env.do(http.MethodPost, "/auth/sign-up", `{"email":"x","password":"short","name":"Al"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if len(body.Fields["password"]) != 1 || len(body.Fields["email"]) != 1 {
		t.Fatalf("unexpected fields %+v", body.Fields)
	}
}

func TestSignUpCreatedAndMerged(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/auth/sign-up", `{"email":"user@example.com","password":"Abcdefg1","name":"User"}`, withGuest("guest-1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if len(env.merger.calls) != 1 {
		t.Fatalf("expected merge after sign-up")
	}
}

func TestMeAndSignOut(t *testing.T) {
	env := newTestEnv(t, nil)
	if rec := env.do(http.MethodGet, "/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec := env.do(http.MethodGet, "/me", "", withBearer("tok"))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "user@example.com") {
		t.Fatalf("unexpected me response %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/auth/sign-out", "", withBearer("tok"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(env.customers.loggedOut) != 1 || env.customers.loggedOut[0] != "tok" {
		t.Fatalf("expected token revoked, got %+v", env.customers.loggedOut)
	}
}
