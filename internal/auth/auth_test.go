package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"installments/internal/core"
	"installments/internal/ledger/memory"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("rey123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "rey123" {
		t.Fatal("hash equals plaintext")
	}
	if err := CheckPassword(hash, "rey123"); err != nil {
		t.Errorf("CheckPassword(correct) = %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, core.ErrInvalidCredential) {
		t.Errorf("CheckPassword(wrong) = %v, want ErrInvalidCredential", err)
	}
	if _, err := HashPassword(""); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestSessionsIssueAndParse(t *testing.T) {
	s, err := NewSessions("0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	token, exp, err := s.Issue(core.User{ID: 7, Username: "Rey"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if d := time.Until(exp); d < 59*time.Minute || d > time.Hour+time.Second {
		t.Errorf("expiry %v not about an hour away", d)
	}

	claims, err := s.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.UserID() != 7 || claims.Username != "Rey" {
		t.Errorf("claims = %+v", claims)
	}

	other, _ := NewSessions("fedcba9876543210", time.Hour)
	if _, err := other.Parse(token); !errors.Is(err, core.ErrInvalidCredential) {
		t.Errorf("Parse with other secret = %v, want ErrInvalidCredential", err)
	}
}

func TestSessionsRejectExpired(t *testing.T) {
	s, _ := NewSessions("0123456789abcdef", time.Minute)
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	token, _, err := s.Issue(core.User{ID: 1, Username: "Rey"})
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := s.Parse(token); err == nil {
		t.Error("expected expired token to fail")
	}
}

func TestAuthenticatorLogin(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	hash, _ := HashPassword("jerna123")
	if _, err := store.CreateUser(ctx, "Jerna", hash); err != nil {
		t.Fatal(err)
	}
	sessions, _ := NewSessions("0123456789abcdef", time.Hour)
	a := NewAuthenticator(store, sessions)

	cookie, err := a.Login(ctx, " Jerna ", "jerna123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if cookie.Name != CookieName || !cookie.HttpOnly || cookie.Value == "" {
		t.Errorf("cookie = %+v", cookie)
	}

	if _, err := a.Login(ctx, "Jerna", "nope"); !errors.Is(err, core.ErrInvalidCredential) {
		t.Errorf("wrong password = %v", err)
	}
	if _, err := a.Login(ctx, "ghost", "jerna123"); !errors.Is(err, core.ErrInvalidCredential) {
		t.Errorf("unknown user = %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	sessions, _ := NewSessions("0123456789abcdef", time.Hour)
	token, _, _ := sessions.Issue(core.User{ID: 3, Username: "Rey"})

	var seen Claims
	h := sessions.Middleware("/login", "/static/")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		path       string
		cookie     string
		htmx       bool
		wantStatus int
		wantHeader string
	}{
		{name: "public page", path: "/login", wantStatus: http.StatusOK},
		{name: "public prefix", path: "/static/app.css", wantStatus: http.StatusOK},
		{name: "no cookie redirects", path: "/", wantStatus: http.StatusSeeOther},
		{name: "bad cookie redirects", path: "/", cookie: "garbage", wantStatus: http.StatusSeeOther},
		{name: "htmx gets header", path: "/forecast", htmx: true, wantStatus: http.StatusUnauthorized, wantHeader: "/login"},
		{name: "valid cookie", path: "/", cookie: token, wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			if tt.htmx {
				req.Header.Set("HX-Request", "true")
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantHeader != "" && rr.Header().Get("HX-Redirect") != tt.wantHeader {
				t.Errorf("HX-Redirect = %q", rr.Header().Get("HX-Redirect"))
			}
		})
	}
	if seen.UserID() != 3 {
		t.Errorf("claims not propagated: %+v", seen)
	}
}
