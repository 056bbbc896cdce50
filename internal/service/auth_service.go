package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
	"kodomo/inventoryhub/pkg/crypto"
	jwtpkg "kodomo/inventoryhub/pkg/jwt"
)

const (
	minPasswordLength  = 8
	refreshTokenPrefix = "refresh:"
)

// TokenSet represents a set of tokens returned after authentication.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Profile is the signed-in user's own view of their account.
type Profile struct {
	*model.User
	HasVisionAPIKey bool `json:"hasVisionApiKey"`
}

// ProfileUpdate changes only the fields that are set. An empty VisionAPIKey removes the key.
type ProfileUpdate struct {
	DisplayName  *string `json:"displayName"`
	VisionAPIKey *string `json:"visionApiKey"`
}

type AuthService interface {
	Register(ctx context.Context, email, password, displayName string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*TokenSet, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)
	Logout(ctx context.Context, refreshToken string) error
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*Profile, error)
}

type authService struct {
	store      repository.Store
	stateStore repository.StateStore
	jwtManager *jwtpkg.Manager
	tokens     *tokenIssuer
	sealer     *crypto.Sealer
	w          *groupWriter
	logger     *zap.Logger
}

// tokenIssuer mints access/refresh pairs and records refresh tokens for rotation.
type tokenIssuer struct {
	jwtManager *jwtpkg.Manager
	stateStore repository.StateStore
}

func NewAuthService(
	store repository.Store,
	stateStore repository.StateStore,
	notifier repository.Notifier,
	jwtManager *jwtpkg.Manager,
	sealer *crypto.Sealer,
	logger *zap.Logger,
) AuthService {
	return &authService{
		store:      store,
		stateStore: stateStore,
		jwtManager: jwtManager,
		tokens:     &tokenIssuer{jwtManager: jwtManager, stateStore: stateStore},
		sealer:     sealer,
		w: &groupWriter{
			store:    store,
			notifier: notifier,
			logger:   logger,
			now:      time.Now,
		},
		logger: logger,
	}
}

func (s *authService) Register(ctx context.Context, email, password, displayName string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.w.now().UTC()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		GroupIDs:     model.StringSlice{},
		Status:       model.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*TokenSet, error) {
	user, err := s.store.Users().GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !crypto.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if user.Status == model.UserStatusDisabled {
		return nil, ErrUserDisabled
	}
	return s.issueTokens(ctx, user.ID)
}

// RefreshToken rotates the refresh token: the presented one is revoked and a new pair is issued.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	claims, err := s.jwtManager.ValidateType(refreshToken, jwtpkg.TokenTypeRefresh)
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}
	key := refreshTokenPrefix + claims.ID
	ok, err := s.stateStore.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check refresh token: %w", err)
	}
	if !ok {
		return nil, ErrRefreshTokenInvalid
	}
	if err := s.stateStore.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	user, err := s.store.Users().GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, err
	}
	if user.Status == model.UserStatusDisabled {
		return nil, ErrUserDisabled
	}
	return s.issueTokens(ctx, user.ID)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwtManager.ValidateType(refreshToken, jwtpkg.TokenTypeRefresh)
	if err != nil {
		// Nothing to revoke.
		return nil
	}
	return s.stateStore.Delete(ctx, refreshTokenPrefix+claims.ID)
}

func (s *authService) issueTokens(ctx context.Context, userID string) (*TokenSet, error) {
	return s.tokens.issue(ctx, userID)
}

func (s *tokenIssuer) issue(ctx context.Context, userID string) (*TokenSet, error) {
	access, err := s.jwtManager.GenerateAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, claims, err := s.jwtManager.GenerateRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.stateStore.Set(ctx, refreshTokenPrefix+claims.ID, []byte(userID), s.jwtManager.RefreshTokenTTL()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenSet{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwtManager.AccessTokenTTL().Seconds()),
	}, nil
}

func (s *authService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &Profile{User: user, HasVisionAPIKey: user.VisionAPIKey != ""}, nil
}

// UpdateProfile also refreshes the user's display name in every group they belong to.
func (s *authService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*Profile, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	renamed := false
	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		renamed = name != user.DisplayName
		user.DisplayName = name
	}
	if update.VisionAPIKey != nil {
		key := strings.TrimSpace(*update.VisionAPIKey)
		if key == "" {
			user.VisionAPIKey = ""
		} else {
			sealed, err := s.sealer.Seal(key)
			if err != nil {
				return nil, fmt.Errorf("seal api key: %w", err)
			}
			user.VisionAPIKey = sealed
		}
	}
	user.UpdatedAt = s.w.now().UTC()
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, err
	}

	if renamed {
		name := displayNameOf(user)
		for _, groupID := range user.GroupIDs {
			_, err := s.w.mutateGroup(ctx, userID, groupID, func(_ context.Context, _ repository.Store, g *model.Group, _ model.MemberRole) error {
				if g.MemberNames == nil {
					g.MemberNames = model.MemberNames{}
				}
				g.MemberNames[userID] = name
				return nil
			})
			if err != nil {
				s.logger.Warn("failed to update member name",
					zap.String("group_id", groupID), zap.String("user_id", userID), zap.Error(err))
			}
		}
	}
	return &Profile{User: user, HasVisionAPIKey: user.VisionAPIKey != ""}, nil
}

var _ AuthService = (*authService)(nil)
