package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/cuongbtq/jobmatch-be/internal/api/model"
	"github.com/cuongbtq/jobmatch-be/internal/api/storage"
	"github.com/cuongbtq/jobmatch-be/internal/auth"
	"github.com/cuongbtq/jobmatch-be/internal/billing"
	"github.com/cuongbtq/jobmatch-be/internal/geocode"
	"github.com/cuongbtq/jobmatch-be/internal/i18n"
	"github.com/cuongbtq/jobmatch-be/internal/messaging"
	"github.com/cuongbtq/jobmatch-be/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

const defaultHeartbeat = 30 * time.Second

// Store is the profile, nearby search, saved job and admin persistence
type Store interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	LookupRole(ctx context.Context, userID string) (auth.Role, error)
	NearbyJobs(ctx context.Context, lat, lng, radiusKm float64) ([]model.NearbyJob, error)
	NearbyWorkers(ctx context.Context, lat, lng, radiusKm float64) ([]model.NearbyWorker, error)
	ToggleSavedJob(ctx context.Context, workerID, jobID string) (bool, error)
	ListSavedJobs(ctx context.Context, workerID string) ([]model.SavedJob, error)
	CountUsersByRole(ctx context.Context) ([]model.RoleCount, error)
	ListUsers(ctx context.Context, filter storage.UserFilter) ([]model.Profile, error)
}

// MessageStore is the conversation persistence
type MessageStore interface {
	messaging.Loader
	CreateMessage(ctx context.Context, conversationID, senderID, body string) (*messaging.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
	GetConversation(ctx context.Context, id string) (*messaging.Conversation, error)
	GetOrCreateConversation(ctx context.Context, workerID, factoryID string, jobID *string) (*messaging.Conversation, bool, error)
	ListConversations(ctx context.Context, userID string) ([]messaging.ConversationSummary, error)
}

type Geocoder interface {
	Forward(ctx context.Context, query string) (*geocode.FeatureCollection, error)
}

type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*auth.Session, error)
}

type Billing interface {
	CreateCheckout(ctx context.Context, factoryID, email, planID string) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type PlanStore interface {
	ListActivePlans(ctx context.Context) ([]billing.Plan, error)
	GetSubscription(ctx context.Context, factoryID string) (*billing.Subscription, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// LiveCheck reports whether a background component is still working
type LiveCheck func() bool

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger     *slog.Logger
	Translator *i18n.Translator

	DB        HealthChecker
	Checks    map[string]LiveCheck // e.g. broker connection, message bridge
	Storage   Store
	Messages  MessageStore
	Hub       *messaging.Hub
	Publisher messaging.Publisher

	Geocoder Geocoder
	Provider CodeExchanger
	Verifier auth.TokenVerifier
	Billing  Billing // nil when no Stripe key is configured
	Plans    PlanStore

	Limiter         ratelimit.Limiter
	RateLimitMax    int
	RateLimitWindow time.Duration

	CORSOrigins       []string
	CookieSecure      bool
	HeartbeatInterval time.Duration
}

// Handler serves the marketplace API
type Handler struct {
	logger     *slog.Logger
	translator *i18n.Translator

	db        HealthChecker
	checks    map[string]LiveCheck
	storage   Store
	messages  MessageStore
	hub       *messaging.Hub
	publisher messaging.Publisher

	geocoder Geocoder
	provider CodeExchanger
	billing  Billing
	plans    PlanStore

	cookieSecure bool
	heartbeat    time.Duration
}

// NewHandler creates a new Handler instance
func NewHandler(deps *Dependencies) *Handler {
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	return &Handler{
		logger:       deps.Logger,
		translator:   deps.Translator,
		db:           deps.DB,
		checks:       deps.Checks,
		storage:      deps.Storage,
		messages:     deps.Messages,
		hub:          deps.Hub,
		publisher:    deps.Publisher,
		geocoder:     deps.Geocoder,
		provider:     deps.Provider,
		billing:      deps.Billing,
		plans:        deps.Plans,
		cookieSecure: deps.CookieSecure,
		heartbeat:    heartbeat,
	}
}

// respondError writes {"error": <message>} in the caller's locale
func (h *Handler) respondError(c *gin.Context, status int, key string) {
	c.JSON(status, gin.H{
		"error": h.translator.T(i18n.FromRequest(c.Request), key, nil),
	})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", slog.String("error", err.Error()))
			h.unhealthy(c, "database")
			return
		}
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !h.checks[name]() {
			h.logger.Error("Health check failed", slog.String("component", name))
			h.unhealthy(c, name)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "jobmatch-api-service",
	})
}

func (h *Handler) unhealthy(c *gin.Context, component string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status":    "unhealthy",
		"service":   "jobmatch-api-service",
		"component": component,
	})
}

const robotsTxt = `User-agent: *
Allow: /
Disallow: /api/
Disallow: /worker/
Disallow: /factory/
Disallow: /admin/
`

// Robots handles GET /robots.txt
func (h *Handler) Robots(c *gin.Context) {
	c.String(http.StatusOK, robotsTxt)
}
