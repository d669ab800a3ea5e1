package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/smartblur/smartblur/internal/audit"
	"github.com/smartblur/smartblur/internal/cache"
	"github.com/smartblur/smartblur/internal/classify"
	"github.com/smartblur/smartblur/internal/config"
	"github.com/smartblur/smartblur/internal/logger"
	"github.com/smartblur/smartblur/internal/ocr"
	"github.com/smartblur/smartblur/internal/redact"
	"github.com/smartblur/smartblur/internal/security"
	"github.com/smartblur/smartblur/internal/session"
	"github.com/smartblur/smartblur/internal/web"
	"github.com/smartblur/smartblur/internal/websocket"
	"go.uber.org/zap"
)

// Version is stamped at build time
var Version = "0.1.0"

// Server is the SmartBlur HTTP server
type Server struct {
	configMu  sync.RWMutex
	config    *config.Config
	logger    *logger.Logger
	sessions  *session.Manager
	annotator *redact.Annotator
	auditor   *audit.Store
	limiter   *security.RateLimiter
	ocrCache  *cache.OCRCache
	router    *mux.Router
	server    *http.Server
	wsHub     *websocket.Hub
	startedAt time.Time
}

// New creates a server wired to the given OCR engine. ocrCache and auditor
// may be nil when those subsystems are disabled.
func New(cfg *config.Config, engine ocr.Engine, ocrCache *cache.OCRCache, auditor *audit.Store, log *logger.Logger) (*Server, error) {
	classifier := classify.New(log.WithComponent("classify"))
	annotator := redact.NewAnnotator(
		classifier,
		cfg.Redaction.FontPath,
		cfg.Redaction.FontSize,
		log.WithComponent("redact"),
	)
	sessions := session.NewManager(engine, classifier, ocrCache, log.WithComponent("session"))
	wsHub := websocket.NewHub(cfg.WebSocket, log.WithComponent("websocket").Logger)

	s := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		sessions:  sessions,
		annotator: annotator,
		auditor:   auditor,
		limiter:   security.NewRateLimiter(&cfg.Security),
		ocrCache:  ocrCache,
		router:    mux.NewRouter(),
		wsHub:     wsHub,
		startedAt: time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	s.router.Handle("/upload", s.rateLimitMiddleware(http.HandlerFunc(s.handleUpload))).Methods("POST")
	s.router.HandleFunc("/session", s.handleSession).Methods("GET")

	s.router.HandleFunc("/image/annotated", s.handleAnnotated).Methods("GET")
	s.router.HandleFunc("/image/preview", s.handlePreview).Methods("GET")
	s.router.HandleFunc("/export", s.handleExport).Methods("GET")

	s.router.HandleFunc("/regions/{index}/toggle", s.handleToggle).Methods("POST")
	s.router.HandleFunc("/actions/blur-sensitive", s.handleBlurSensitive).Methods("POST")
	s.router.HandleFunc("/actions/unblur-all", s.handleUnblurAll).Methods("POST")
	s.router.HandleFunc("/actions/reset", s.handleReset).Methods("POST")

	s.router.HandleFunc("/patterns", s.handlePatternList).Methods("GET")
	s.router.HandleFunc("/patterns", s.handlePatternAdd).Methods("POST")
	s.router.HandleFunc("/patterns/{index}", s.handlePatternUpdate).Methods("PATCH")
	s.router.HandleFunc("/patterns/{index}", s.handlePatternDelete).Methods("DELETE")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting SmartBlur server",
		zap.Int("port", s.currentConfig().Server.Port),
		zap.Bool("ocr_cache", s.ocrCache != nil),
		zap.Bool("audit", s.auditor != nil),
	)

	if s.config.WebSocket.Enabled {
		go s.wsHub.Run()
	}
	s.limiter.StartCleanupRoutine()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping SmartBlur server")
	return s.server.Shutdown(ctx)
}

// ApplyConfig installs a reloaded configuration. Only the request-scoped
// settings (blur strength, auto-blur toggles) take effect live; server
// timeouts and subsystem wiring need a restart.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.configMu.Lock()
	s.config = cfg
	s.configMu.Unlock()

	s.logger.Info("Configuration reloaded",
		zap.Float64("blur_strength", cfg.Redaction.BlurStrength),
	)
}

func (s *Server) currentConfig() *config.Config {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}
