package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/script-core/internal/auth"
	"github.com/annel0/script-core/internal/dispatcher"
	"github.com/annel0/script-core/internal/logging"
	"github.com/annel0/script-core/internal/middleware"
	"github.com/annel0/script-core/internal/snapshot"
	"github.com/annel0/script-core/internal/world"
)

// Loop состояние цикла тиков, которое показывает API
type Loop interface {
	State() dispatcher.State
	Ticks() uint64
	Period() time.Duration
}

// Config содержит конфигурацию админского API
type Config struct {
	Addr   string       // адрес для запуска сервера
	World  *world.World // мир региона
	Loop   Loop         // цикл тиков (может быть nil)
	Region string

	// Snapshots хранилище снимков; nil отключает POST /api/snapshot
	Snapshots snapshot.Store
	// Signer проверка JWT; nil отключает авторизацию
	Signer *auth.Signer
	// WebhookSecret секрет HMAC для /api/webhook; пустой отключает маршрут
	WebhookSecret string

	// MetricsEndpoint включает GET /metrics
	MetricsEndpoint bool
	Registerer      prometheus.Registerer
	Gatherer        prometheus.Gatherer
}

// Server админский REST API ядра
type Server struct {
	router     *gin.Engine
	config     Config
	metrics    *ServerMetrics
	httpServer *http.Server
	log        *logging.Logger
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewServer создаёт сервер и настраивает маршруты
func NewServer(config Config) *Server {
	if config.Addr == "" {
		config.Addr = ":8089"
	}
	if config.Region == "" {
		config.Region = "default"
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("scriptcore_api"))
	router.Use(middleware.NewRequestLogger().Handler())

	promMw := middleware.NewPrometheusMiddleware("scriptcore_api", config.Registerer)
	router.Use(promMw.Handler())
	if config.MetricsEndpoint {
		promMw.RegisterMetricsEndpoint(router, config.Gatherer)
	}

	s := &Server{
		router:  router,
		config:  config,
		metrics: NewServerMetrics(),
		log:     logging.GetAPILogger(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes настраивает маршруты REST API
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")

	// Webhook (без JWT, но с подписью)
	if s.config.WebhookSecret != "" {
		api.POST("/webhook", s.handleWebhook)
	}

	protected := api.Group("/")
	if s.config.Signer != nil {
		protected.Use(s.jwtMiddleware())
	}
	{
		protected.GET("/stats", s.handleStats)
		protected.GET("/classes", s.handleClasses)
		protected.GET("/actors", s.handleActors)
		protected.GET("/actors/:id", s.handleActor)
		protected.GET("/start-location", s.handleStartLocation)

		admin := protected.Group("/")
		if s.config.Signer != nil {
			admin.Use(s.adminMiddleware())
		}
		admin.POST("/events", s.handlePublishEvent)
		admin.POST("/entities", s.handleCreateEntity)
		admin.DELETE("/entities/:id", s.handleRemoveEntity)
		admin.POST("/snapshot", s.handleSnapshot)
	}
}

// Handler возвращает http.Handler (для тестов и встраивания)
func (s *Server) Handler() http.Handler { return s.router }

// Start запускает HTTP сервер в отдельной горутине
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()

	s.log.Info("✅ REST API сервер запущен на %s (auth=%v, webhook=%v)",
		s.config.Addr, s.config.Signer != nil, s.config.WebhookSecret != "")
	return nil
}

// Shutdown останавливает HTTP сервер
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("🛑 Остановка REST API сервера...")
	return s.httpServer.Shutdown(ctx)
}
