package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/forward"
	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/store"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("secret-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(hash, "secret-password") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong-password") {
		t.Fatal("expected password to fail verification")
	}
	if VerifyPassword("not-a-phc-string", "secret-password") {
		t.Fatal("expected malformed hash to fail verification")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	raw, err := tokens.Mint(domain.Principal{UserID: 42, Admin: true})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	p, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.UserID != 42 || !p.Admin {
		t.Fatalf("principal = %+v, want UserID 42 admin", p)
	}
}

func TestTokenRejections(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	expired, err := NewTokens("test-secret", -time.Minute).Mint(domain.Principal{UserID: 1})
	if err != nil {
		t.Fatalf("Mint expired: %v", err)
	}
	foreign, err := NewTokens("other-secret", time.Hour).Mint(domain.Principal{UserID: 1})
	if err != nil {
		t.Fatalf("Mint foreign: %v", err)
	}
	// Same secret, different algorithm.
	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	wrongAlg, err := hs512.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign HS512: %v", err)
	}

	for _, tt := range []struct {
		name string
		raw  string
	}{
		{"expired", expired},
		{"wrong secret", foreign},
		{"wrong algorithm", wrongAlg},
		{"garbage", "not.a.token"},
		{"empty", ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tokens.Verify(tt.raw); err == nil {
				t.Error("Verify accepted an invalid token")
			}
		})
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	log := logger.New("error", false)
	st, err := store.Open("sqlite", filepath.Join(t.TempDir(), "marque.db"), log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(st, NewTokens("test-secret", time.Hour), time.Hour, log)
}

func TestCreateUserAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.CreateUser(ctx, NewUser{
		Email:    "  Alice@EXAMPLE.com ",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized %q", u.Email, "alice@example.com")
	}
	if u.DisplayName != "alice" {
		t.Errorf("display name = %q, want local part fallback %q", u.DisplayName, "alice")
	}
	if len(u.UserKey) != forward.UserKeyLen {
		t.Errorf("user key %q, want %d characters", u.UserKey, forward.UserKeyLen)
	}

	raw, logged, err := svc.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != u.ID {
		t.Errorf("logged in as user %d, want %d", logged.ID, u.ID)
	}
	p, err := svc.VerifyToken(raw)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if p.UserID != u.ID || p.Admin {
		t.Errorf("principal = %+v, want UserID %d non-admin", p, u.ID)
	}

	if _, _, err := svc.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.CreateUser(ctx, NewUser{Email: "not-an-email", Password: "long enough"}); !domain.IsValidation(err) {
		t.Errorf("bad email: err = %v, want ValidationError", err)
	}
	if _, err := svc.CreateUser(ctx, NewUser{Email: "a@b.com", Password: "short"}); !domain.IsValidation(err) {
		t.Errorf("short password: err = %v, want ValidationError", err)
	}

	if _, err := svc.CreateUser(ctx, NewUser{Email: "a@b.com", Password: "long enough"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	_, err := svc.CreateUser(ctx, NewUser{Email: "A@B.com", Password: "long enough"})
	if !domain.IsConflict(err) {
		t.Errorf("duplicate email: err = %v, want ConflictError", err)
	}
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.CreateUser(ctx, NewUser{Email: "a@b.com", Password: "first password"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	token, u, err := svc.StartPasswordReset(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("StartPasswordReset: %v", err)
	}
	if u.Email != "a@b.com" || token == "" {
		t.Fatalf("StartPasswordReset returned token %q user %+v", token, u)
	}

	if err := svc.ResetPassword(ctx, token, "second password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, _, err := svc.Login(ctx, "a@b.com", "second password"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "a@b.com", "first password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("login with old password: err = %v, want ErrInvalidCredentials", err)
	}

	// Tokens are one-time.
	if err := svc.ResetPassword(ctx, token, "third password"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("token reuse: err = %v, want ErrNotFound", err)
	}

	if _, _, err := svc.StartPasswordReset(ctx, "nobody@b.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown email: err = %v, want ErrNotFound", err)
	}
}

func TestRotateUserKey(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.CreateUser(ctx, NewUser{Email: "a@b.com", Password: "long enough"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	key, err := svc.RotateUserKey(ctx, u.ID)
	if err != nil {
		t.Fatalf("RotateUserKey: %v", err)
	}
	if key == u.UserKey {
		t.Error("rotation returned the old key")
	}
	if len(key) != forward.UserKeyLen {
		t.Errorf("rotated key %q, want %d characters", key, forward.UserKeyLen)
	}

	fresh, err := svc.st.UserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if fresh.UserKey != key {
		t.Errorf("stored key = %q, want %q", fresh.UserKey, key)
	}

	if _, err := svc.RotateUserKey(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.CreateUser(ctx, NewUser{Email: "a@b.com", Password: "first password"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "short"); !domain.IsValidation(err) {
		t.Errorf("short password: err = %v, want ValidationError", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "second password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, _, err := svc.Login(ctx, "a@b.com", "second password"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}
