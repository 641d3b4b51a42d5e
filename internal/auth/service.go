package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/forward"
	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/store"
)

// ErrInvalidCredentials is returned for unknown emails and wrong
// passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

const minPasswordLen = 8

// Service implements account lifecycle and login.
type Service struct {
	st       *store.Store
	tokens   *Tokens
	resetTTL time.Duration
	log      logger.Logger
}

func NewService(st *store.Store, tokens *Tokens, resetTTL time.Duration, log logger.Logger) *Service {
	return &Service{st: st, tokens: tokens, resetTTL: resetTTL, log: log}
}

// VerifyToken resolves a bearer token to a principal.
func (s *Service) VerifyToken(raw string) (domain.Principal, error) {
	return s.tokens.Verify(raw)
}

// Login checks the password and mints a token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := s.st.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !VerifyPassword(u.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.tokens.Mint(domain.Principal{UserID: u.ID, Admin: u.Admin})
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// NewUser carries the fields for account creation.
type NewUser struct {
	Email       string
	DisplayName string
	Password    string
	Admin       bool
}

// CreateUser registers an account and allocates its user key. Key
// collisions are resolved by drawing again, bounded by
// forward.KeyAttempts; an email collision surfaces as a ConflictError.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return nil, domain.Validationf("valid email required")
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = email[:at]
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Admin:        in.Admin,
	}
	for attempt := 0; attempt < forward.KeyAttempts; attempt++ {
		key, err := forward.NewUserKey()
		if err != nil {
			return nil, err
		}
		u.UserKey = key
		err = s.st.CreateUser(ctx, u)
		if err == nil {
			return u, nil
		}
		if !userKeyConflict(err) {
			return nil, err
		}
		s.log.Warn("user key collision, drawing again",
			logger.Int("attempt", attempt+1),
		)
	}
	return nil, fmt.Errorf("no unique user key after %d attempts", forward.KeyAttempts)
}

// RotateUserKey replaces the caller's user key with a fresh one. All
// existing short URLs under the old key stop resolving.
func (s *Service) RotateUserKey(ctx context.Context, userID int64) (string, error) {
	for attempt := 0; attempt < forward.KeyAttempts; attempt++ {
		key, err := forward.NewUserKey()
		if err != nil {
			return "", err
		}
		err = s.st.UpdateUserKey(ctx, userID, key)
		if err == nil {
			return key, nil
		}
		if !userKeyConflict(err) {
			return "", err
		}
		s.log.Warn("user key collision, drawing again",
			logger.Int("attempt", attempt+1),
		)
	}
	return "", fmt.Errorf("no unique user key after %d attempts", forward.KeyAttempts)
}

// ChangePassword sets a new password for userID. The bearer token is
// the caller's proof of identity; no current password is asked for.
func (s *Service) ChangePassword(ctx context.Context, userID int64, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.st.UpdatePasswordHash(ctx, userID, hash)
}

// StartPasswordReset creates a one-time reset token for the account
// behind email. Unknown emails return ErrNotFound; the HTTP layer
// answers 202 either way so the endpoint cannot be used to probe for
// accounts.
func (s *Service) StartPasswordReset(ctx context.Context, email string) (string, *domain.User, error) {
	u, err := s.st.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", nil, err
	}
	token := uuid.NewString()
	if err := s.st.CreateResetToken(ctx, token, u.ID, time.Now().Add(s.resetTTL)); err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// ResetPassword consumes a reset token and stores the new password.
// Unknown, expired and already-used tokens all come back as
// ErrNotFound.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	userID, err := s.st.ConsumeResetToken(ctx, token, time.Now())
	if err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.st.UpdatePasswordHash(ctx, userID, hash)
}

// createProviderUser registers an account for an OIDC identity. The
// local password is random and never disclosed; the reset flow stays
// available if the user ever wants one.
func (s *Service) createProviderUser(ctx context.Context, email, name string) (*domain.User, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate placeholder password: %w", err)
	}
	return s.CreateUser(ctx, NewUser{
		Email:       email,
		DisplayName: name,
		Password:    base64.RawURLEncoding.EncodeToString(buf),
	})
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen {
		return domain.Validationf("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userKeyConflict(err error) bool {
	var conflict *domain.ConflictError
	return errors.As(err, &conflict) && conflict.Field == "user_key"
}
