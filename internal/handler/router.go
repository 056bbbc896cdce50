package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kodomo/inventoryhub/internal/config"
	"kodomo/inventoryhub/internal/handler/middleware"
	jwtpkg "kodomo/inventoryhub/pkg/jwt"
)

// Handlers groups the route handlers. OAuth2, Identity, Local, Images and
// LocalImages are optional and their routes are only mounted when set.
type Handlers struct {
	Auth        *AuthHandler
	OAuth2      *OAuth2Handler
	Identity    *IdentityHandler
	Group       *GroupHandler
	Item        *ItemHandler
	Invite      *InviteHandler
	Vision      *VisionHandler
	Sync        *SyncHandler
	Local       *LocalHandler
	Images      *ImageHandler
	LocalImages *ImageHandler
}

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	h Handlers,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	for _, images := range []*ImageHandler{h.Images, h.LocalImages} {
		if images != nil && images.MountPath() != "" {
			r.GET(images.MountPath()+"/:name", images.Serve)
		}
	}

	// Public auth routes
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)

		// OAuth2 social login (public)
		if h.OAuth2 != nil {
			auth.GET("/oauth2/:provider/authorize", h.OAuth2.Authorize)
			auth.GET("/oauth2/:provider/callback", h.OAuth2.Callback)
		}
	}

	// Protected routes
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(jwtManager))
	{
		protected.POST("/auth/logout", h.Auth.Logout)
		protected.GET("/profile", h.Auth.GetProfile)
		protected.PATCH("/profile", h.Auth.UpdateProfile)

		// Linked sign-in accounts
		if h.Identity != nil {
			protected.GET("/identities", h.Identity.List)
			protected.DELETE("/identities/:accountId", h.Identity.Unlink)
		}
		if h.OAuth2 != nil {
			protected.POST("/identities/oauth2/:provider/link", h.OAuth2.LinkAuthorize)
		}

		protected.GET("/groups", h.Group.List)
		protected.POST("/groups", h.Group.Create)
		protected.POST("/invite-codes/redeem",
			middleware.RateLimit(cfg.RateLimit.RedeemPerMinute, cfg.RateLimit.RedeemBurst),
			h.Invite.Redeem)
		protected.GET("/sync", h.Sync.Stream)

		group := protected.Group("/groups/:groupId")
		{
			group.GET("", h.Group.Get)
			group.PATCH("", h.Group.Rename)

			group.DELETE("/members/:memberId", h.Group.RemoveMember)
			group.PUT("/members/:memberId/role", h.Group.SetMemberRole)

			group.POST("/children", h.Group.AddChild)
			group.PATCH("/children/:childId", h.Group.UpdateChild)
			group.DELETE("/children/:childId", h.Group.DeleteChild)

			group.POST("/categories", h.Group.AddCategory)
			group.PUT("/categories/order", h.Group.ReorderCategories)
			group.PATCH("/categories/:categoryId", h.Group.UpdateCategory)
			group.DELETE("/categories/:categoryId", h.Group.DeleteCategory)

			group.GET("/items", h.Item.List)
			group.POST("/items", h.Item.Create)
			group.GET("/items/:itemId", h.Item.Get)
			group.PATCH("/items/:itemId", h.Item.Update)
			group.DELETE("/items/:itemId", h.Item.Delete)
			group.GET("/summaries", h.Item.Summaries)
			group.GET("/facets", h.Item.Facets)

			group.POST("/invite-codes", h.Invite.Create)
			group.GET("/invite-codes", h.Invite.List)
			group.POST("/invite-codes/:codeId/revoke", h.Invite.Revoke)
			group.DELETE("/invite-codes/:codeId", h.Invite.Delete)
			group.POST("/invite-codes/:codeId/send", h.Invite.Send)

			group.POST("/vision/extract",
				middleware.RateLimit(cfg.RateLimit.VisionPerMinute, cfg.RateLimit.VisionBurst),
				h.Vision.Extract)
		}
	}

	// Local variant: one household snapshot, shared by every signed-in user.
	if h.Local != nil {
		local := r.Group("/api/v1/local")
		local.Use(middleware.JWTAuth(jwtManager))
		{
			local.GET("/snapshot", h.Local.Snapshot)
			local.PUT("/snapshot", h.Local.ReplaceAll)
			local.PUT("/family-name", h.Local.UpdateFamilyName)

			local.POST("/children", h.Local.AddChild)
			local.PATCH("/children/:childId", h.Local.UpdateChild)
			local.DELETE("/children/:childId", h.Local.DeleteChild)

			local.POST("/categories", h.Local.AddCategory)
			local.PUT("/categories/order", h.Local.ReorderCategories)
			local.PATCH("/categories/:categoryId", h.Local.UpdateCategory)
			local.DELETE("/categories/:categoryId", h.Local.DeleteCategory)

			local.GET("/items", h.Local.ListItems)
			local.POST("/items", h.Local.AddItem)
			local.PATCH("/items/:itemId", h.Local.UpdateItem)
			local.DELETE("/items/:itemId", h.Local.DeleteItem)

			local.GET("/export", h.Local.Export)
			local.POST("/import", h.Local.Import)
		}
	}

	return r
}
