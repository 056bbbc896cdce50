package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kodomo/inventoryhub/internal/service"
	"kodomo/inventoryhub/pkg/response"
)

type OAuth2Handler struct {
	oauth2Service service.OAuth2Service
}

func NewOAuth2Handler(oauth2Service service.OAuth2Service) *OAuth2Handler {
	return &OAuth2Handler{oauth2Service: oauth2Service}
}

// Authorize redirects the user to the OAuth2 provider's authorization page.
func (h *OAuth2Handler) Authorize(c *gin.Context) {
	authURL, err := h.oauth2Service.AuthorizationURL(c.Request.Context(), c.Param("provider"))
	if err != nil {
		writeError(c, err, "failed to generate authorization URL")
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// Callback finishes a sign-in or a link, depending on how the flow was started.
func (h *OAuth2Handler) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		response.BadRequest(c, "authorization denied: "+errParam)
		return
	}
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		response.BadRequest(c, "missing code or state")
		return
	}

	result, err := h.oauth2Service.HandleCallback(c.Request.Context(), c.Param("provider"), code, state)
	if err != nil {
		writeError(c, err, "oauth2 sign-in failed")
		return
	}
	response.Success(c, result)
}

// LinkAuthorize returns the provider URL that links the signed-in user's account.
func (h *OAuth2Handler) LinkAuthorize(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	authURL, err := h.oauth2Service.LinkAuthorizationURL(c.Request.Context(), c.Param("provider"), userID)
	if err != nil {
		writeError(c, err, "failed to generate authorization URL")
		return
	}
	response.Success(c, gin.H{"authorize_url": authURL})
}
