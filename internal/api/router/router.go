package router

import (
	"github.com/cuongbtq/jobmatch-be/internal/api/domain"
	"github.com/cuongbtq/jobmatch-be/internal/api/handler"
	"github.com/cuongbtq/jobmatch-be/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware(deps.CORSOrigins))

	h := handler.NewHandler(deps)
	gate := auth.NewGate(deps.Storage.LookupRole, deps.Translator, deps.Logger)
	limit := func(route string) gin.HandlerFunc {
		return RateLimitMiddleware(deps.Limiter, route, deps.RateLimitMax, deps.RateLimitWindow, deps.Translator, deps.Logger)
	}

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/robots.txt", h.Robots)

	// GET /auth/callback - finish the provider sign in
	r.GET("/auth/callback", h.AuthCallback)

	// GET /dashboard - browser entry point, redirects by role
	r.GET("/dashboard",
		auth.Authenticate(deps.Verifier, deps.Logger),
		gate.RequirePageRole(auth.RoleAdmin, auth.RoleFactory, auth.RoleWorker),
		h.Dashboard,
	)

	// Role layouts. Each one only admits its own role and sends everyone
	// else to their home.
	for _, role := range []auth.Role{auth.RoleAdmin, auth.RoleFactory, auth.RoleWorker} {
		r.GET(auth.HomePath(role),
			auth.Authenticate(deps.Verifier, deps.Logger),
			gate.RequirePageRole(role),
			h.Layout,
		)
	}

	api := r.Group("/api")
	api.Use(auth.Authenticate(deps.Verifier, deps.Logger))
	{
		api.GET("/geocode", limit(domain.RouteGeocode), h.Geocode)
		api.GET("/jobs/nearby", limit(domain.RouteNearbyJobs), h.NearbyJobs)
		api.GET("/workers/nearby", limit(domain.RouteNearbyWorkers), h.NearbyWorkers)

		api.GET("/plans", h.ListPlans)
		api.POST("/locale", h.SetLocale)

		// signed by Stripe, not by a user session
		api.POST("/stripe/webhook", h.StripeWebhook)

		api.GET("/me", gate.RequireUser(), h.Me)

		conversations := api.Group("/conversations", gate.RequireRole(auth.RoleWorker, auth.RoleFactory))
		{
			conversations.GET("", h.ListConversations)
			conversations.POST("", h.CreateConversation)
			conversations.GET("/:conversation_id/messages", h.ListMessages)
			conversations.POST("/:conversation_id/messages", h.SendMessage)
			conversations.POST("/:conversation_id/read", h.MarkRead)
			conversations.GET("/:conversation_id/stream", h.StreamMessages)
		}

		saved := api.Group("/saved-jobs", gate.RequireRole(auth.RoleWorker))
		{
			saved.GET("", h.ListSavedJobs)
			saved.POST("/:job_id", h.ToggleSavedJob)
		}

		api.POST("/billing/checkout", gate.RequireRole(auth.RoleFactory), h.CreateCheckout)

		admin := api.Group("/admin", gate.RequireRole(auth.RoleAdmin))
		{
			admin.GET("/stats", h.AdminStats)
			admin.GET("/users", h.AdminListUsers)
		}
	}

	return r
}
