package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrWeakPassword        = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRefreshTokenInvalid = errors.New("refresh token invalid or revoked")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserDisabled        = errors.New("user is disabled")

	ErrOAuth2ProviderNotConfigured = errors.New("oauth2 provider not configured")
	ErrOAuth2InvalidState          = errors.New("invalid or expired oauth2 state")
	ErrOAuth2TokenExchange         = errors.New("failed to exchange oauth2 code for token")
	ErrOAuth2UserInfo              = errors.New("failed to get oauth2 user info")
	ErrAccountNotLinked            = errors.New("no account is linked to this sign-in; sign in with your password and link it first")
	ErrAccountAlreadyLinked        = errors.New("this external account is linked to another user")
	ErrLinkedAccountNotFound       = errors.New("linked account not found")
	ErrCannotUnlinkLast            = errors.New("cannot unlink the only way to sign in")

	ErrGroupNotFound     = errors.New("group not found")
	ErrNotGroupMember    = errors.New("not a member of this group")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrMemberNotFound    = errors.New("member not found")
	ErrCannotRemoveOwner = errors.New("the group owner cannot be removed")
	ErrCannotChangeOwner = errors.New("the owner's role cannot be changed")
	ErrInvalidRole       = errors.New("invalid member role")
	ErrItemNotFound      = errors.New("item not found")

	ErrInviteCodeNotFound  = errors.New("invite code not found")
	ErrInviteCodeInactive  = errors.New("invite code is no longer active")
	ErrInviteCodeExpired   = errors.New("invite code has expired")
	ErrInviteCodeExhausted = errors.New("invite code usage exhausted")
	ErrAlreadyMember       = errors.New("already a member of this group")
	ErrInviteCodeCollision = errors.New("could not allocate a unique invite code")
	ErrMailNotConfigured   = errors.New("mail delivery is not configured")

	ErrNoCurrentGroup = errors.New("no current group selected")
	ErrSessionClosed  = errors.New("session closed")

	ErrInvalidImage            = errors.New("image could not be decoded")
	ErrVisionKeyMissing        = errors.New("no vision API key configured for this user")
	ErrVisionMalformedResponse = errors.New("vision response was not valid item JSON")
)

// VisionAPIError carries the provider's own error message.
type VisionAPIError struct {
	StatusCode int
	Message    string
}

func (e *VisionAPIError) Error() string {
	return fmt.Sprintf("vision API error (status %d): %s", e.StatusCode, e.Message)
}
