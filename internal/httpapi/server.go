// Package httpapi is the HTTP surface of the wall service.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jacentio/livewall/gateway"
	"github.com/jacentio/livewall/service"
)

// Header names.
const (
	HeaderOwnerKey      = "Owner-Key"
	HeaderWebhookSecret = "Webhook-Secret"
	HeaderAdminToken    = "Admin-Token"
)

// Options configures the router.
type Options struct {
	// WebhookPath is where payment confirmations are posted. The route is
	// only registered when WebhookSecret is set.
	WebhookPath   string
	WebhookSecret string

	// AdminToken enables the /admin routes.
	AdminToken string

	// RPS and Burst configure per-IP rate limiting; RPS 0 disables it.
	RPS   int
	Burst int

	// Keepalive is the interval between SSE pings.
	// Default: 15s
	Keepalive time.Duration

	// MaxImageBytes bounds upload bodies.
	// Default: 10 MiB
	MaxImageBytes int64

	// Linker, if set, serves image downloads as redirects to direct links.
	Linker gateway.Linker
}

// Server holds the HTTP handlers.
type Server struct {
	svc  *service.Service
	opts Options
	log  *zap.SugaredLogger
}

// NewRouter builds the gin engine serving svc.
func NewRouter(svc *service.Service, opts Options, log *zap.SugaredLogger) *gin.Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = 15 * time.Second
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 10 << 20
	}
	if opts.WebhookPath == "" {
		opts.WebhookPath = "/payments/webhook"
	}
	s := &Server{svc: svc, opts: opts, log: log.With("component", "http")}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(loggingMiddleware(s.log))
	if opts.RPS > 0 {
		r.Use(rateLimitMiddleware(newIPLimiters(opts.RPS, opts.Burst, limiterIdleTTL)))
	}
	s.register(r)
	return r
}

func (s *Server) register(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/walls", s.createWall)
	r.GET("/walls/:id", s.getWall)
	r.PATCH("/walls/:id", s.claimWall)
	r.GET("/validate/:id/:token", s.confirmOwnership)

	r.POST("/walls/:id/images", s.addImage)
	r.GET("/walls/:id/images", s.listImages)
	r.GET("/images/:id", s.getImage)
	r.DELETE("/images/:id", s.deleteImage)

	r.GET("/events", s.events)

	r.GET("/users/:id/:token", s.userDashboard)
	r.GET("/moderation/:id/:key", s.moderation)

	if s.opts.WebhookSecret != "" {
		r.POST(s.opts.WebhookPath, requireHeader(HeaderWebhookSecret, s.opts.WebhookSecret), s.paymentWebhook)
	}

	if s.opts.AdminToken != "" {
		admin := r.Group("/admin", requireHeader(HeaderAdminToken, s.opts.AdminToken))
		{
			admin.GET("/users", s.listUsers)
			admin.GET("/walls", s.listWalls)
			admin.DELETE("", s.reset)
		}
	}
}
