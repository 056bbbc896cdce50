package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"kodomo/inventoryhub/internal/handler/middleware"
	jwtpkg "kodomo/inventoryhub/pkg/jwt"
	"kodomo/inventoryhub/pkg/response"
)

var ErrNoClaims = errors.New("claims not found in context")

func getUserIDFromContext(c *gin.Context) (string, error) {
	claimsVal, exists := c.Get(middleware.ContextKeyUserClaims)
	if !exists {
		return "", ErrNoClaims
	}
	claims, ok := claimsVal.(*jwtpkg.Claims)
	if !ok || claims.Subject == "" {
		return "", ErrNoClaims
	}
	return claims.Subject, nil
}

// requireUser writes a 401 and reports false when the request carries no user.
func requireUser(c *gin.Context) (string, bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "missing authentication")
		return "", false
	}
	return userID, true
}
