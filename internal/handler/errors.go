package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kodomo/inventoryhub/internal/inventory"
	"kodomo/inventoryhub/internal/repository"
	"kodomo/inventoryhub/internal/service"
	"kodomo/inventoryhub/pkg/response"
)

// writeError maps domain errors to the response envelope. Anything unknown is
// attached to the context for the request log and reported as a 500.
func writeError(c *gin.Context, err error, fallback string) {
	var apiErr *service.VisionAPIError
	switch {
	case errors.Is(err, inventory.ErrNameRequired),
		errors.Is(err, inventory.ErrCategoryRequired),
		errors.Is(err, inventory.ErrUnknownCategory),
		errors.Is(err, inventory.ErrUnknownChild),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidColor),
		errors.Is(err, inventory.ErrInvalidOrder),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidImage),
		errors.Is(err, service.ErrOAuth2ProviderNotConfigured),
		errors.Is(err, service.ErrOAuth2InvalidState),
		errors.Is(err, service.ErrCannotUnlinkLast),
		errors.Is(err, repository.ErrInvalidSnapshotFormat):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrRefreshTokenInvalid):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrNotGroupMember),
		errors.Is(err, service.ErrPermissionDenied),
		errors.Is(err, service.ErrUserDisabled),
		errors.Is(err, service.ErrCannotRemoveOwner),
		errors.Is(err, service.ErrCannotChangeOwner):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrGroupNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrMemberNotFound),
		errors.Is(err, service.ErrInviteCodeNotFound),
		errors.Is(err, service.ErrLinkedAccountNotFound),
		errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrAccountNotLinked),
		errors.Is(err, service.ErrAccountAlreadyLinked):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrInviteCodeInactive),
		errors.Is(err, service.ErrInviteCodeExpired),
		errors.Is(err, service.ErrInviteCodeExhausted):
		response.Gone(c, err.Error())
	case errors.Is(err, service.ErrVisionKeyMissing):
		response.Unprocessable(c, err.Error())
	case errors.As(err, &apiErr):
		response.BadGateway(c, apiErr.Message)
	case errors.Is(err, service.ErrVisionMalformedResponse):
		response.BadGateway(c, err.Error())
	case errors.Is(err, service.ErrOAuth2TokenExchange),
		errors.Is(err, service.ErrOAuth2UserInfo):
		_ = c.Error(err)
		response.BadGateway(c, "sign-in provider request failed")
	case errors.Is(err, service.ErrMailNotConfigured):
		response.Error(c, http.StatusServiceUnavailable, http.StatusServiceUnavailable, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c, fallback)
	}
}
