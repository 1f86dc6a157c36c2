// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/app/handlers"
	"github.com/amirphl/campaign-hub/app/middleware"
	"github.com/amirphl/campaign-hub/config"
	_ "github.com/amirphl/campaign-hub/docs"
	"github.com/amirphl/campaign-hub/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	ShortLink  handlers.ShortLinkHandlerInterface
	Engagement handlers.EngagementHandlerInterface
	HubContent handlers.HubContentHandlerInterface
	Dispatch   handlers.DispatchHandlerInterface
	Media      handlers.MediaAssetHandlerInterface
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	cfg      *config.ProductionConfig
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, cfg *config.ProductionConfig) Router {
	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 4 * 1024 * 1024
	}
	app := fiber.New(fiber.Config{
		AppName:      "Campaign Hub API",
		ServerHeader: "campaign-hub",
		ErrorHandler: errorHandler,
		BodyLimit:    bodyLimit,
		ReadTimeout:  orDefault(cfg.Server.ReadTimeout, 10*time.Second),
		WriteTimeout: orDefault(cfg.Server.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(cfg.Server.IdleTimeout, 60*time.Second),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
	})

	return &FiberRouter{
		app:      app,
		handlers: h,
		cfg:      cfg,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	// Public short link redirect sits outside the API group and its API key check.
	r.app.Get("/s/:code", r.handlers.ShortLink.Visit)

	if r.cfg.Metrics.Enabled {
		path := r.cfg.Metrics.PrometheusPath
		if path == "" {
			path = "/metrics"
		}
		r.app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)

	env := r.cfg.Deployment.Environment
	if env == "development" || env == "local" {
		api.Get("/swagger.json", r.serveSwaggerJSON)
		r.app.Get("/swagger", r.serveSwaggerUI)
		log.Println("API documentation enabled for development")
	}

	globalLimit := r.cfg.Security.GlobalRateLimit
	if globalLimit <= 0 {
		globalLimit = 2000
	}
	api.Use(limiter.New(limiter.Config{
		Max:          globalLimit,
		Expiration:   orDefault(r.cfg.Security.RateLimitWindow, time.Minute),
		KeyGenerator: func(c fiber.Ctx) string { return c.IP() },
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error:   dto.ErrorDetail{Code: "RATE_LIMIT_EXCEEDED"},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	// Landing page beacons are public; everything else needs an API key when configured.
	engagement := api.Group("/engagement")
	engagement.Post("/views", r.handlers.Engagement.RecordView)
	engagement.Post("/phone-clicks", r.handlers.Engagement.RecordPhoneClick)
	engagement.Post("/form-submissions", r.handlers.Engagement.RecordFormSubmission)

	protected := api.Group("", r.apiKeyMiddleware)

	protected.Get("/campaigns/:campaign_id/metrics", r.handlers.Engagement.GetCampaignMetrics)

	protected.Post("/short-links", r.handlers.ShortLink.CreateShortLink)
	protected.Get("/short-links/:code", r.handlers.ShortLink.GetShortLink)

	hubs := protected.Group("/hubs")
	hubs.Post("/", r.handlers.HubContent.CreateHubContent)
	hubs.Get("/:id", r.handlers.HubContent.GetHubContent)
	hubs.Delete("/:id", r.handlers.HubContent.DeleteHubContent)
	hubs.Post("/:id/blog", r.handlers.HubContent.AttachDraftBlog)

	dispatches := protected.Group("/dispatches")
	dispatches.Post("/", r.handlers.Dispatch.CreateCampaign)
	dispatches.Get("/", r.handlers.Dispatch.ListDispatches)
	dispatches.Get("/:id", r.handlers.Dispatch.GetDispatch)
	dispatches.Put("/:id", r.handlers.Dispatch.UpdateDispatch)
	dispatches.Put("/:id/schedule", r.handlers.Dispatch.RescheduleDispatch)
	dispatches.Delete("/:id", r.handlers.Dispatch.CancelDispatch)
	dispatches.Get("/:id/audit-logs", r.handlers.Dispatch.ListAuditLogs)
	dispatches.Get("/:id/results.xlsx", r.handlers.Dispatch.ExportResults)

	if r.handlers.Media != nil {
		media := protected.Group("/media")
		media.Post("/", r.handlers.Media.Upload)
		media.Get("/:uuid", r.handlers.Media.Download)
	}

	protected.Post("/scheduler/run", r.handlers.Dispatch.RunScheduler)

	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	sec := r.cfg.Security
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             sec.XSSProtection,
		ContentTypeNosniff:        sec.XContentTypeOptions,
		XFrameOptions:             sec.XFrameOptions,
		ContentSecurityPolicy:     sec.CSPPolicy,
		HSTSMaxAge:                sec.HSTSMaxAge,
		HSTSExcludeSubdomains:     !sec.HSTSIncludeSubDoms,
		HSTSPreloadEnabled:        sec.HSTSPreload,
		ReferrerPolicy:            sec.ReferrerPolicy,
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	origins := sec.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := sec.AllowedMethods
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	headers := append([]string{}, sec.AllowedHeaders...)
	for _, h := range []string{"Content-Type", "X-Request-ID", r.apiKeyHeader()} {
		if !slices.Contains(headers, h) {
			headers = append(headers, h)
		}
	}
	maxAge := sec.CORSMaxAge
	if maxAge <= 0 {
		maxAge = utils.CORSMaxAge
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     methods,
		AllowHeaders:     headers,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: sec.AllowCredentials && !slices.Contains(origins, "*"),
		MaxAge:           maxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compressionLevel(r.cfg.Server.CompressionLevel),
			Next: func(c fiber.Ctx) bool {
				return strings.HasSuffix(c.Path(), ".xlsx")
			},
		}))
	}

	// Only the generated API docs are static enough to cache.
	r.app.Use(cache.New(cache.Config{
		Next: func(c fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet ||
				(c.Path() != "/api/v1/swagger.json" && c.Path() != "/swagger")
		},
		Expiration:          30 * time.Minute,
		DisableCacheControl: false,
	}))

	metricsPath := r.cfg.Metrics.PrometheusPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.app.Use(middleware.Metrics(metricsPath, "/api/v1/health"))

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	r.app.Use(r.securityMiddleware)

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// compressionLevel maps a zlib style 1-9 level onto fiber's three presets.
func compressionLevel(level int) compress.Level {
	switch {
	case level <= 0:
		return compress.LevelDefault
	case level <= 3:
		return compress.LevelBestSpeed
	case level >= 8:
		return compress.LevelBestCompression
	default:
		return compress.LevelDefault
	}
}

// securityMiddleware rejects blacklisted client IPs and, when a whitelist is
// configured, everything not on it. The redirect route is exempt from the
// whitelist so recipients can always follow their links.
func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	ip := c.IP()
	denied := slices.Contains(r.cfg.Security.IPBlacklist, ip)
	if wl := r.cfg.Security.IPWhitelist; !denied && len(wl) > 0 && !strings.HasPrefix(c.Path(), "/s/") {
		denied = !slices.Contains(wl, ip)
	}
	if denied {
		return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
			Success: false,
			Message: "Access denied from this IP address",
			Error:   dto.ErrorDetail{Code: "ACCESS_DENIED"},
		})
	}
	return c.Next()
}

// apiKeyMiddleware checks the API key header against the configured keys
func (r *FiberRouter) apiKeyMiddleware(c fiber.Ctx) error {
	if !r.cfg.Security.RequireAPIKey {
		return c.Next()
	}

	apiKey := c.Get(r.apiKeyHeader())
	if apiKey == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "API key is required",
			Error:   dto.ErrorDetail{Code: "MISSING_API_KEY"},
		})
	}

	for _, valid := range r.cfg.Security.AllowedAPIKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(valid)) == 1 {
			return c.Next()
		}
	}
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: "Invalid API key",
		Error:   dto.ErrorDetail{Code: "INVALID_API_KEY"},
	})
}

func (r *FiberRouter) apiKeyHeader() string {
	if r.cfg.Security.APIKeyHeader != "" {
		return r.cfg.Security.APIKeyHeader
	}
	return "X-API-Key"
}

// Start starts the HTTP server, serving TLS when a certificate is configured
func (r *FiberRouter) Start(address string) error {
	lc := fiber.ListenConfig{DisableStartupMessage: true}
	if r.cfg.Security.TLSEnabled {
		lc.CertFile = r.cfg.Security.TLSCertFile
		lc.CertKeyFile = r.cfg.Security.TLSKeyFile
		log.Printf("Starting TLS server on %s", address)
	} else {
		log.Printf("Starting server on %s", address)
	}
	return r.app.Listen(address, lc)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// healthCheck reports liveness
// @Summary Health Check
// @Tags Health
// @Produce json
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/health [get]
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "campaign-hub-api",
		},
	})
}

func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error:   dto.ErrorDetail{Code: "SWAGGER_LOAD_ERROR"},
		})
	}
	c.Set("Content-Type", "application/json")
	return c.SendString(doc)
}

func (r *FiberRouter) serveSwaggerUI(c fiber.Ctx) error {
	c.Set("Content-Type", "text/html")
	return c.SendString(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Campaign Hub API - Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({ url: '/api/v1/swagger.json', dom_id: '#swagger-ui', deepLinking: true });
        };
    </script>
</body>
</html>`)
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": c.Locals("requestid"),
			},
		},
	})
}

// errorHandler is the global Fiber error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)

	message := "An internal server error occurred"
	if code < fiber.StatusInternalServerError {
		message = err.Error()
	}
	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": c.Locals("requestid"),
			},
		},
	})
}

func generateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
