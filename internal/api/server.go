package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/david/contract-ledger/internal/auth"
	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/ingest"
	"github.com/david/contract-ledger/internal/logger"
)

const defaultMaxUpload = 25 << 20

type Server struct {
	Pipeline    *ingest.Pipeline
	AuthService *auth.Service
	Echo        *echo.Echo

	log          *logger.Logger
	validate     *validator.Validate
	maxUpload    int64
	authDisabled bool
}

func NewServer(pipeline *ingest.Pipeline, authService *auth.Service, cfg config.ServerConfig, authCfg config.AuthConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		Pipeline:     pipeline,
		AuthService:  authService,
		Echo:         e,
		log:          log.With("component", "api"),
		validate:     validator.New(),
		maxUpload:    cfg.MaxUploadBytes,
		authDisabled: authCfg.Disabled,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUpload
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "request_id", v.RequestID}
			if v.Error != nil {
				s.log.Warn("request failed", append(fields, "error", v.Error)...)
				return nil
			}
			s.log.Info("request", fields...)
			return nil
		},
	}))

	allowedOrigins := cfg.CORSOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:4200"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.Echo.Group("/api/v1")

	// Auth Routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Contract Routes
	contracts := api.Group("/contracts")
	if !s.authDisabled {
		contracts.Use(s.AuthService.Middleware)
	}
	contracts.POST("/base/ingest", s.handleIngestBase)
	contracts.POST("/:id/addenda/ingest", s.handleIngestAddendum)
	contracts.GET("/:id/state", s.handleGetState)
	contracts.GET("/:id/versions", s.handleListVersions)
	contracts.GET("/:id/versions/:version", s.handleGetVersion)
	contracts.GET("/:id/versions/:version/redline", s.handleGetRedline)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}
	if err := s.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "A valid email and a password of at least 8 characters are required")
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}
	if err := s.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) Start(port string) error {
	s.log.Info("Server starting", "port", port)
	err := s.Echo.Start(":" + port)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones, up to timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Echo.Shutdown(ctx)
}
