package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"kodomo/inventoryhub/internal/config"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
	"kodomo/inventoryhub/pkg/crypto"
	jwtpkg "kodomo/inventoryhub/pkg/jwt"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"

	oauth2StatePrefix = "oauth2_state:"
	oauth2StateTTL    = 10 * time.Minute

	purposeLogin = "login"
	purposeLink  = "link"
)

// oauth2StateData stores state for CSRF protection during OAuth2 flow.
type oauth2StateData struct {
	Provider string `json:"provider"`
	Purpose  string `json:"purpose"` // "login" or "link"
	UserID   string `json:"user_id,omitempty"`
}

// OAuth2Result is the outcome of a provider callback: tokens for a sign-in,
// or the new link for a link flow.
type OAuth2Result struct {
	Tokens *TokenSet            `json:"tokens,omitempty"`
	Linked *model.LinkedAccount `json:"linked,omitempty"`
	// Created is set when the sign-in opened a new account.
	Created bool `json:"created"`
}

type OAuth2Service interface {
	AuthorizationURL(ctx context.Context, provider string) (string, error)
	LinkAuthorizationURL(ctx context.Context, provider, userID string) (string, error)
	HandleCallback(ctx context.Context, provider, code, state string) (*OAuth2Result, error)
}

type externalUser struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

type oauth2Provider struct {
	config      *oauth2.Config
	userInfoURL string
	parse       func(body []byte) (*externalUser, error)
}

type oauth2Service struct {
	providers  map[string]oauth2Provider
	store      repository.Store
	stateStore repository.StateStore
	tokens     *tokenIssuer
	httpClient *http.Client
	now        func() time.Time
	logger     *zap.Logger
}

func NewOAuth2Service(
	cfg config.OAuth2Config,
	store repository.Store,
	stateStore repository.StateStore,
	jwtManager *jwtpkg.Manager,
	httpClient *http.Client,
	logger *zap.Logger,
) OAuth2Service {
	providers := make(map[string]oauth2Provider)
	if cfg.Google.ClientID != "" {
		providers[ProviderGoogle] = newOAuth2Provider(cfg.Google, endpoints.Google,
			"https://www.googleapis.com/oauth2/v2/userinfo", parseGoogleUser)
	}
	if cfg.GitHub.ClientID != "" {
		providers[ProviderGitHub] = newOAuth2Provider(cfg.GitHub, endpoints.GitHub,
			"https://api.github.com/user", parseGitHubUser)
	}
	return &oauth2Service{
		providers:  providers,
		store:      store,
		stateStore: stateStore,
		tokens:     &tokenIssuer{jwtManager: jwtManager, stateStore: stateStore},
		httpClient: httpClient,
		now:        time.Now,
		logger:     logger,
	}
}

func newOAuth2Provider(
	pc config.OAuth2ProviderConfig, endpoint oauth2.Endpoint, userInfoURL string,
	parse func([]byte) (*externalUser, error),
) oauth2Provider {
	if pc.AuthURL != "" {
		endpoint.AuthURL = pc.AuthURL
	}
	if pc.TokenURL != "" {
		endpoint.TokenURL = pc.TokenURL
	}
	if pc.UserInfoURL != "" {
		userInfoURL = pc.UserInfoURL
	}
	return oauth2Provider{
		config: &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  pc.RedirectURL,
			Scopes:       pc.Scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		parse:       parse,
	}
}

func (s *oauth2Service) provider(name string) (oauth2Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return oauth2Provider{}, ErrOAuth2ProviderNotConfigured
	}
	return p, nil
}

func (s *oauth2Service) AuthorizationURL(ctx context.Context, provider string) (string, error) {
	return s.buildAuthURL(ctx, provider, oauth2StateData{Provider: provider, Purpose: purposeLogin})
}

func (s *oauth2Service) LinkAuthorizationURL(ctx context.Context, provider, userID string) (string, error) {
	return s.buildAuthURL(ctx, provider, oauth2StateData{Provider: provider, Purpose: purposeLink, UserID: userID})
}

func (s *oauth2Service) buildAuthURL(ctx context.Context, provider string, stateData oauth2StateData) (string, error) {
	p, err := s.provider(provider)
	if err != nil {
		return "", err
	}

	stateToken, err := crypto.GenerateRandomString(32)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	data, err := json.Marshal(stateData)
	if err != nil {
		return "", err
	}
	if err := s.stateStore.Set(ctx, oauth2StatePrefix+stateToken, data, oauth2StateTTL); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	return p.config.AuthCodeURL(stateToken, oauth2.AccessTypeOnline), nil
}

func (s *oauth2Service) HandleCallback(ctx context.Context, provider, code, state string) (*OAuth2Result, error) {
	stateData, err := s.consumeState(ctx, state, provider)
	if err != nil {
		return nil, err
	}
	p, err := s.provider(provider)
	if err != nil {
		return nil, err
	}
	ext, err := s.fetchExternalUser(ctx, p, code)
	if err != nil {
		return nil, err
	}

	if stateData.Purpose == purposeLink {
		account, err := s.link(ctx, stateData.UserID, provider, ext)
		if err != nil {
			return nil, err
		}
		return &OAuth2Result{Linked: account}, nil
	}
	return s.login(ctx, provider, ext)
}

// consumeState validates and deletes the state; a state works once.
func (s *oauth2Service) consumeState(ctx context.Context, state, provider string) (*oauth2StateData, error) {
	key := oauth2StatePrefix + state
	data, err := s.stateStore.Get(ctx, key)
	if err != nil || data == nil {
		return nil, ErrOAuth2InvalidState
	}
	_ = s.stateStore.Delete(ctx, key)

	var stateData oauth2StateData
	if err := json.Unmarshal(data, &stateData); err != nil {
		return nil, ErrOAuth2InvalidState
	}
	if stateData.Provider != provider {
		return nil, ErrOAuth2InvalidState
	}
	return &stateData, nil
}

func (s *oauth2Service) fetchExternalUser(ctx context.Context, p oauth2Provider, code string) (*externalUser, error) {
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuth2TokenExchange, err)
	}

	resp, err := p.config.Client(ctx, token).Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuth2UserInfo, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrOAuth2UserInfo, resp.StatusCode)
	}
	ext, err := p.parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuth2UserInfo, err)
	}
	return ext, nil
}

func (s *oauth2Service) login(ctx context.Context, provider string, ext *externalUser) (*OAuth2Result, error) {
	account, err := s.store.LinkedAccounts().GetByProviderSubject(ctx, provider, ext.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return s.signUp(ctx, provider, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("find linked account: %w", err)
	}

	user, err := s.store.Users().GetByID(ctx, account.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.Status != model.UserStatusActive {
		return nil, ErrUserDisabled
	}
	tokens, err := s.tokens.issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &OAuth2Result{Tokens: tokens}, nil
}

// signUp opens an account for a first-time sign-in. Only a provider-verified
// e-mail that no existing user holds qualifies; otherwise the user has to sign
// in and link the provider.
func (s *oauth2Service) signUp(ctx context.Context, provider string, ext *externalUser) (*OAuth2Result, error) {
	email := strings.ToLower(strings.TrimSpace(ext.Email))
	if email == "" || !ext.EmailVerified {
		return nil, ErrAccountNotLinked
	}

	now := s.now().UTC()
	user := &model.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: strings.TrimSpace(ext.Name),
		GroupIDs:    model.StringSlice{},
		Status:      model.UserStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, st repository.Store) error {
		if _, err := st.Users().GetByEmail(ctx, email); err == nil {
			return ErrAccountNotLinked
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := st.Users().Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAccountNotLinked
			}
			return err
		}
		return st.LinkedAccounts().Create(ctx, &model.LinkedAccount{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			Provider:  provider,
			Subject:   ext.Subject,
			Email:     email,
			CreatedAt: now,
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAccountAlreadyLinked
		}
		return nil, err
	}
	s.logger.Info("user registered via oauth2",
		zap.String("user_id", user.ID), zap.String("provider", provider))

	tokens, err := s.tokens.issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &OAuth2Result{Tokens: tokens, Created: true}, nil
}

func (s *oauth2Service) link(ctx context.Context, userID, provider string, ext *externalUser) (*model.LinkedAccount, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.Status != model.UserStatusActive {
		return nil, ErrUserDisabled
	}

	existing, err := s.store.LinkedAccounts().GetByProviderSubject(ctx, provider, ext.Subject)
	switch {
	case err == nil && existing.UserID == userID:
		return existing, nil
	case err == nil:
		return nil, ErrAccountAlreadyLinked
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("check linked account: %w", err)
	}

	account := &model.LinkedAccount{
		ID:        uuid.NewString(),
		UserID:    userID,
		Provider:  provider,
		Subject:   ext.Subject,
		Email:     strings.ToLower(ext.Email),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.LinkedAccounts().Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAccountAlreadyLinked
		}
		return nil, err
	}
	return account, nil
}

func parseGoogleUser(body []byte) (*externalUser, error) {
	var user struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, errors.New("missing user id")
	}
	return &externalUser{Subject: user.ID, Email: user.Email, EmailVerified: user.VerifiedEmail, Name: user.Name}, nil
}

// parseGitHubUser reads /user. Its public e-mail is not known to be verified,
// so GitHub can only sign in to accounts it was linked to.
func parseGitHubUser(body []byte) (*externalUser, error) {
	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, errors.New("missing user id")
	}
	name := user.Name
	if name == "" {
		name = user.Login
	}
	return &externalUser{Subject: strconv.FormatInt(user.ID, 10), Email: user.Email, Name: name}, nil
}

var _ OAuth2Service = (*oauth2Service)(nil)
