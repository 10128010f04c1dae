package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"clubhub/internal/auth"
	"clubhub/internal/http/handlers"
	"clubhub/internal/logger"
	"clubhub/internal/rbac"
)

func NewRouter(d *handlers.Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(d.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.HTTP.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/healthz", handlers.Health(d))

	// Public routes
	r.GET("/calendar/:token", handlers.CalendarFeed(d))
	public := r.Group("/api/v1")
	{
		public.POST("/auth/login", handlers.Login(d))
		public.POST("/auth/logout", handlers.Logout(d))
		public.POST("/auth/passkey/begin", handlers.PasskeyLoginBegin(d))
		public.POST("/auth/passkey/finish", handlers.PasskeyLoginFinish(d))
		public.POST("/invites/accept", handlers.AcceptInvite(d))
	}

	chk := d.Checker
	api := r.Group("/api/v1", auth.JWT(d.DB, d.Config.Auth.JWTSecret))
	{
		// Current profile
		api.GET("/me", handlers.Me(d))
		api.PATCH("/me", handlers.UpdateMe(d))
		api.POST("/me/calendar-token", handlers.RotateCalendarToken(d))
		api.PUT("/me/password", handlers.ChangePassword(d))

		// Profiles
		api.GET("/profiles", requireCap(chk, rbac.CapAdmin), handlers.ListProfiles(d))
		api.PATCH("/profiles/:id/roles", requireCap(chk, rbac.CapAdmin), handlers.UpdateRoles(d))
		api.POST("/profiles/:id/activate", requireCap(chk, rbac.CapAdmin), handlers.ActivateProfile(d))
		api.POST("/profiles/:id/deactivate", requireCap(chk, rbac.CapAdmin), handlers.DeactivateProfile(d))

		// Invites
		api.POST("/invites", requireCap(chk, rbac.CapAdmin), handlers.CreateInvite(d))
		api.GET("/invites", requireCap(chk, rbac.CapAdmin), handlers.ListInvites(d))
		api.DELETE("/invites/:id", requireCap(chk, rbac.CapAdmin), handlers.RevokeInvite(d))

		// Groups
		api.GET("/groups", handlers.ListGroups(d))
		api.POST("/groups", requireCap(chk, rbac.CapAdmin), handlers.CreateGroup(d))
		api.PATCH("/groups/:id", requireCap(chk, rbac.CapAdmin), handlers.UpdateGroup(d))
		api.DELETE("/groups/:id", requireCap(chk, rbac.CapAdmin), handlers.DeleteGroup(d))
		api.PUT("/groups/:id/coaches", requireCap(chk, rbac.CapAdmin), handlers.SetGroupCoaches(d))

		// Riders
		api.GET("/riders", handlers.ListRiders(d))
		api.GET("/riders/:id", handlers.GetRider(d))
		api.POST("/riders", requireCap(chk, rbac.CapAdmin), handlers.CreateRider(d))
		api.PATCH("/riders/:id", requireCap(chk, rbac.CapAdmin), handlers.UpdateRider(d))
		api.DELETE("/riders/:id", requireCap(chk, rbac.CapAdmin), handlers.DeleteRider(d))
		api.PUT("/riders/:id/parents", requireCap(chk, rbac.CapAdmin), handlers.SetRiderParents(d))

		// Events
		api.GET("/events", handlers.ListEvents(d))
		api.GET("/events/:id", handlers.GetEvent(d))
		api.POST("/events", requireCap(chk, rbac.CapStaff), handlers.CreateEvent(d))
		api.PATCH("/events/:id", requireCap(chk, rbac.CapStaff), handlers.UpdateEvent(d))
		api.DELETE("/events/:id", requireCap(chk, rbac.CapAdmin), handlers.DeleteEvent(d))
		api.POST("/events/:id/cancel", requireCap(chk, rbac.CapStaff), handlers.CancelEvent(d))
		api.GET("/events/:id/ics", handlers.EventICS(d))

		// RSVPs
		api.GET("/events/:id/rsvps", handlers.ListRSVPs(d))
		api.PUT("/events/:id/rsvps", handlers.UpsertRSVP(d))
		api.DELETE("/events/:id/rsvps/:rsvp_id", handlers.DeleteRSVP(d))

		// Dashboard
		api.GET("/events/:id/dashboard", requireCap(chk, rbac.CapStaff), handlers.EventDashboard(d))
		api.GET("/events/:id/dashboard/ws", requireCap(chk, rbac.CapStaff), handlers.EventDashboardWS(d))

		// CSV import
		api.POST("/import/riders/preview", requireCap(chk, rbac.CapAdmin), handlers.PreviewRiderImport(d))
		api.POST("/import/riders/commit", requireCap(chk, rbac.CapAdmin), handlers.CommitRiderImport(d))

		// Push & notifications
		api.GET("/push/vapid-public-key", handlers.VAPIDPublicKey(d))
		api.POST("/push/subscriptions", handlers.Subscribe(d))
		api.DELETE("/push/subscriptions", handlers.Unsubscribe(d))
		api.POST("/notifications", requireCap(chk, rbac.CapAdmin), handlers.CreateNotification(d))
		api.GET("/notifications", requireCap(chk, rbac.CapAdmin), handlers.ListNotifications(d))
		api.DELETE("/notifications/:id", requireCap(chk, rbac.CapAdmin), handlers.CancelNotification(d))

		// Passkeys
		api.POST("/passkeys/register/begin", handlers.BeginPasskeyRegistration(d))
		api.POST("/passkeys/register/finish", handlers.FinishPasskeyRegistration(d))
		api.GET("/passkeys", handlers.ListPasskeys(d))
		api.DELETE("/passkeys/:id", handlers.DeletePasskey(d))

		// Audit Trail
		api.GET("/audit", requireCap(chk, rbac.CapAdmin), handlers.ListAudit(d))
	}

	return r
}

func requireCap(chk rbac.Checker, capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !chk.Can(auth.CurrentProfile(c), capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "missing": capability})
			return
		}
		c.Next()
	}
}
