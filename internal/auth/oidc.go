package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/store"
)

const (
	oidcStateTTL    = 10 * time.Minute
	maxUserinfoBody = 1 << 20
)

// OIDCSettings configures a single OIDC provider.
type OIDCSettings struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserinfoURL  string
	RedirectURL  string
	Scopes       []string

	// EmailClaim and NameClaim are gjson paths into the userinfo
	// document, e.g. "email" or "attributes.mail.0".
	EmailClaim string
	NameClaim  string
}

// OIDC runs the authorization-code flow against one provider and
// maps the resulting identity onto a local account.
type OIDC struct {
	oauth      *oauth2.Config
	userinfo   string
	emailClaim string
	nameClaim  string
	st         *store.Store
	svc        *Service
	log        logger.Logger
}

func NewOIDC(settings OIDCSettings, st *store.Store, svc *Service, log logger.Logger) *OIDC {
	return &OIDC{
		oauth: &oauth2.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  settings.AuthURL,
				TokenURL: settings.TokenURL,
			},
			RedirectURL: settings.RedirectURL,
			Scopes:      settings.Scopes,
		},
		userinfo:   settings.UserinfoURL,
		emailClaim: settings.EmailClaim,
		nameClaim:  settings.NameClaim,
		st:         st,
		svc:        svc,
		log:        log,
	}
}

// Start persists a fresh state value and returns the provider URL to
// redirect the browser to.
func (o *OIDC) Start(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := o.st.CreateOIDCState(ctx, state, time.Now().Add(oidcStateTTL)); err != nil {
		return "", err
	}
	return o.oauth.AuthCodeURL(state), nil
}

// Callback completes the flow: state check, code exchange, userinfo
// fetch, then find-or-create of the local account. It returns a
// minted bearer token and the user it belongs to.
func (o *OIDC) Callback(ctx context.Context, state, code string) (string, *domain.User, error) {
	if state == "" || code == "" {
		return "", nil, domain.Validationf("state and code required")
	}
	if err := o.st.ConsumeOIDCState(ctx, state, time.Now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.Validationf("unknown or expired state")
		}
		return "", nil, err
	}

	tok, err := o.oauth.Exchange(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("code exchange failed: %w", err)
	}
	body, err := o.fetchUserinfo(ctx, tok)
	if err != nil {
		return "", nil, err
	}

	email := gjson.GetBytes(body, o.emailClaim).String()
	if email == "" {
		return "", nil, fmt.Errorf("userinfo has no value at claim path %q", o.emailClaim)
	}
	name := gjson.GetBytes(body, o.nameClaim).String()

	u, err := o.findOrCreate(ctx, email, name)
	if err != nil {
		return "", nil, err
	}
	token, err := o.svc.tokens.Mint(domain.Principal{UserID: u.ID, Admin: u.Admin})
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (o *OIDC) fetchUserinfo(ctx context.Context, tok *oauth2.Token) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.userinfo, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	resp, err := o.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserinfoBody))
	if err != nil {
		return nil, fmt.Errorf("read userinfo: %w", err)
	}
	return body, nil
}

// findOrCreate maps the provider identity onto a local account by
// email. Two first logins racing each other are settled by the unique
// email constraint; the loser re-reads the winner's row.
func (o *OIDC) findOrCreate(ctx context.Context, email, name string) (*domain.User, error) {
	u, err := o.st.UserByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	o.log.Info("first provider login, creating account",
		logger.String("email", email),
	)
	u, err = o.svc.createProviderUser(ctx, email, name)
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) && conflict.Field == "email" {
			return o.st.UserByEmail(ctx, normalizeEmail(email))
		}
		return nil, err
	}
	return u, nil
}
