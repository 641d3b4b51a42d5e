package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marque-app/marque/internal/access"
	"github.com/marque-app/marque/internal/auth"
	"github.com/marque-app/marque/internal/config"
	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/forward"
	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/httpserver/mw"
	"github.com/marque-app/marque/internal/httpserver/routes"
	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/store"
)

type env struct {
	ts  *httptest.Server
	st  *store.Store
	svc *auth.Service
}

// newEnv wires the real router the way server.New does, minus the
// listener. Rate limits are set high enough to never fire here.
func newEnv(t *testing.T) *env {
	t.Helper()
	log := logger.New("error", false)
	st, err := store.Open("sqlite", filepath.Join(t.TempDir(), "marque.db"), log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	tokens := auth.NewTokens("routes-test-secret", time.Hour)
	svc := auth.NewService(st, tokens, time.Hour, log)

	cfg := &config.Config{
		APIBurst:      1000,
		APIPerMin:     1000,
		ForwardBurst:  1000,
		ForwardPerMin: 1000,
	}
	d := deps.Deps{
		Logger:    log,
		Cfg:       cfg,
		StartTime: time.Now(),
		Version:   "test",
		Store:     st,
		Access:    access.New(st, log),
		Forward:   forward.NewResolver(st, log),
		Auth:      svc,
	}
	d.APILimiter = mw.RateLimit(mw.RateLimitConfig{
		Burst:             cfg.APIBurst,
		RefillPerIPPerMin: cfg.APIPerMin,
		KeyPrefix:         "api",
	}, nil, log)
	d.ForwardLimiter = mw.RateLimit(mw.RateLimitConfig{
		Burst:             cfg.ForwardBurst,
		RefillPerIPPerMin: cfg.ForwardPerMin,
		KeyPrefix:         "fwd",
	}, nil, log)

	r := chi.NewRouter()
	routes.RegisterAll(r, d)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return &env{ts: ts, st: st, svc: svc}
}

func (e *env) createUser(t *testing.T, email, password string, admin bool) *domain.User {
	t.Helper()
	u, err := e.svc.CreateUser(context.Background(), auth.NewUser{
		Email:    email,
		Password: password,
		Admin:    admin,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

// do sends a JSON request and returns the response. token "" means
// unauthenticated; the caller owns resp.Body.
func (e *env) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{
		// Redirects are part of what we assert on.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (e *env) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", email, resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	decode(t, resp, &out)
	if out.Token == "" {
		t.Fatalf("login %s: empty token", email)
	}
	return out.Token
}

type bookmarkBody struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Slug       *string `json:"slug"`
	Forwarding bool    `json:"forwarding_enabled"`
}

func TestLoginAndBookmarkLifecycle(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "alice@example.com", "s3cret-enough", false)
	token := e.login(t, "alice@example.com", "s3cret-enough")

	resp := e.do(t, http.MethodPost, "/api/bookmarks", token, map[string]any{
		"title": "Team wiki",
		"url":   "https://wiki.example.com",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	var created bookmarkBody
	decode(t, resp, &created)
	if created.ID == 0 || created.Title != "Team wiki" {
		t.Fatalf("create: got %+v", created)
	}

	resp = e.do(t, http.MethodGet, "/api/bookmarks", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	var list []bookmarkBody
	decode(t, resp, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list: got %+v", list)
	}

	resp = e.do(t, http.MethodPatch, fmt.Sprintf("/api/bookmarks/%d", created.ID), token, map[string]any{
		"title": "Renamed wiki",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch: status %d", resp.StatusCode)
	}
	var patched bookmarkBody
	decode(t, resp, &patched)
	if patched.Title != "Renamed wiki" {
		t.Errorf("patch: title = %q", patched.Title)
	}

	resp = e.do(t, http.MethodDelete, fmt.Sprintf("/api/bookmarks/%d", created.ID), token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	resp = e.do(t, http.MethodGet, fmt.Sprintf("/api/bookmarks/%d", created.ID), token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)
	paths := []string{"/api/bookmarks", "/api/folders", "/api/tags", "/api/profile", "/api/stats"}
	for _, p := range paths {
		resp := e.do(t, http.MethodGet, p, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status %d, want 401", p, resp.StatusCode)
		}
	}

	resp := e.do(t, http.MethodGet, "/api/bookmarks", "not-a-jwt", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("garbage token: status %d, want 401", resp.StatusCode)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "alice@example.com", "s3cret-enough", false)

	resp := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d, want 401", resp.StatusCode)
	}

	// Unknown account answers the same way as a wrong password.
	resp = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown account: status %d, want 401", resp.StatusCode)
	}
}

func TestAdminGate(t *testing.T) {
	e := newEnv(t)
	admin := e.createUser(t, "root@example.com", "s3cret-enough", true)
	user := e.createUser(t, "alice@example.com", "s3cret-enough", false)
	adminToken := e.login(t, "root@example.com", "s3cret-enough")
	userToken := e.login(t, "alice@example.com", "s3cret-enough")

	resp := e.do(t, http.MethodGet, "/api/admin/users", userToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("admin list as user: status %d, want 403", resp.StatusCode)
	}

	resp = e.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list: status %d", resp.StatusCode)
	}
	var users []struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	decode(t, resp, &users)
	if len(users) != 2 {
		t.Fatalf("admin list: got %d users, want 2", len(users))
	}

	// Admins cannot delete themselves.
	resp = e.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", admin.ID), adminToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("self delete: status %d, want 400", resp.StatusCode)
	}

	// Team management end to end: create, add a member, the member
	// sees it under /api/teams.
	resp = e.do(t, http.MethodPost, "/api/admin/teams", adminToken, map[string]string{"name": "platform"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create team: status %d", resp.StatusCode)
	}
	var team struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	decode(t, resp, &team)

	resp = e.do(t, http.MethodPut, fmt.Sprintf("/api/admin/teams/%d/members/%d", team.ID, user.ID), adminToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("add member: status %d", resp.StatusCode)
	}

	resp = e.do(t, http.MethodGet, "/api/teams", userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("my teams: status %d", resp.StatusCode)
	}
	var mine []struct {
		Name string `json:"name"`
	}
	decode(t, resp, &mine)
	if len(mine) != 1 || mine[0].Name != "platform" {
		t.Fatalf("my teams: got %+v", mine)
	}

	// Deleting the account kills its credentials.
	resp = e.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", user.ID), adminToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete user: status %d", resp.StatusCode)
	}
	resp = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "s3cret-enough",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login after delete: status %d, want 401", resp.StatusCode)
	}
}

func TestForwardAndKeyRotation(t *testing.T) {
	e := newEnv(t)
	alice := e.createUser(t, "alice@example.com", "s3cret-enough", false)
	token := e.login(t, "alice@example.com", "s3cret-enough")

	resp := e.do(t, http.MethodPost, "/api/bookmarks", token, map[string]any{
		"title":              "wiki",
		"url":                "https://wiki.example.com/home",
		"slug":               "wiki",
		"forwarding_enabled": true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	var created bookmarkBody
	decode(t, resp, &created)

	addr := "/" + alice.UserKey + "/wiki"
	resp = e.do(t, http.MethodGet, addr, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("forward: status %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://wiki.example.com/home" {
		t.Errorf("forward: location = %q", loc)
	}

	// Unknown slug and unknown key both answer 404.
	resp = e.do(t, http.MethodGet, "/"+alice.UserKey+"/nope", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown slug: status %d, want 404", resp.StatusCode)
	}
	resp = e.do(t, http.MethodGet, "/zzzzzzzz/wiki", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown key: status %d, want 404", resp.StatusCode)
	}

	// A reserved first segment never resolves as a user key.
	resp = e.do(t, http.MethodGet, "/api/nope", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("reserved segment: status %d, want 404", resp.StatusCode)
	}

	// Switching forwarding off closes the address without freeing
	// the slug.
	resp = e.do(t, http.MethodPatch, fmt.Sprintf("/api/bookmarks/%d", created.ID), token, map[string]any{
		"forwarding_enabled": false,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch forwarding: status %d", resp.StatusCode)
	}
	resp = e.do(t, http.MethodGet, addr, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("forwarding off: status %d, want 404", resp.StatusCode)
	}
	resp = e.do(t, http.MethodPatch, fmt.Sprintf("/api/bookmarks/%d", created.ID), token, map[string]any{
		"forwarding_enabled": true,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch forwarding back: status %d", resp.StatusCode)
	}

	// Rotating the user key retires every old address at once.
	resp = e.do(t, http.MethodPost, "/api/profile/user-key", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate: status %d", resp.StatusCode)
	}
	var rotated struct {
		UserKey string `json:"user_key"`
	}
	decode(t, resp, &rotated)
	if rotated.UserKey == "" || rotated.UserKey == alice.UserKey {
		t.Fatalf("rotate: got key %q", rotated.UserKey)
	}

	resp = e.do(t, http.MethodGet, addr, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("old key: status %d, want 404", resp.StatusCode)
	}
	resp = e.do(t, http.MethodGet, "/"+rotated.UserKey+"/wiki", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("new key: status %d, want 302", resp.StatusCode)
	}
}

func TestSlugConflictOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "alice@example.com", "s3cret-enough", false)
	e.createUser(t, "bob@example.com", "s3cret-enough", false)
	aliceToken := e.login(t, "alice@example.com", "s3cret-enough")
	bobToken := e.login(t, "bob@example.com", "s3cret-enough")

	resp := e.do(t, http.MethodPost, "/api/bookmarks", aliceToken, map[string]any{
		"title": "docs", "url": "https://docs.example.com", "slug": "docs",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create: status %d", resp.StatusCode)
	}

	resp = e.do(t, http.MethodPost, "/api/bookmarks", bobToken, map[string]any{
		"title": "docs too", "url": "https://other.example.com", "slug": "docs",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second create: status %d, want 409", resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	decode(t, resp, &body)
	if body.Field != "slug" {
		t.Errorf("conflict field = %q, want slug", body.Field)
	}
}

func TestValidationOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "alice@example.com", "s3cret-enough", false)
	token := e.login(t, "alice@example.com", "s3cret-enough")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"url": "https://x.example.com"}},
		{"missing url", map[string]any{"title": "x"}},
		{"bad slug", map[string]any{"title": "x", "url": "https://x.example.com", "slug": "Not Valid!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(t, http.MethodPost, "/api/bookmarks", token, tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: status %d", resp.StatusCode)
	}
	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	decode(t, resp, &body)
	if body.Status != "ok" || body.Version != "test" {
		t.Errorf("healthz: got %+v", body)
	}

	resp = e.do(t, http.MethodGet, "/readyz", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz: status %d", resp.StatusCode)
	}
}

func TestInfraRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "root@example.com", "s3cret-enough", true)
	e.createUser(t, "alice@example.com", "s3cret-enough", false)
	adminToken := e.login(t, "root@example.com", "s3cret-enough")
	userToken := e.login(t, "alice@example.com", "s3cret-enough")

	resp := e.do(t, http.MethodGet, "/infra", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("infra anonymous: status %d, want 401", resp.StatusCode)
	}
	resp = e.do(t, http.MethodGet, "/infra", userToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("infra as user: status %d, want 403", resp.StatusCode)
	}

	resp = e.do(t, http.MethodGet, "/infra", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("infra as admin: status %d", resp.StatusCode)
	}
	var body struct {
		Mode string `json:"mode"`
	}
	decode(t, resp, &body)
	if body.Mode != "ok" {
		t.Errorf("infra mode = %q, want ok", body.Mode)
	}
}
