// Package handlers implements the HTTP handlers for the deal pipeline API.
//
// Handlers push domain failures through c.Error(); the ErrorHandler
// middleware renders the JSON error envelope.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealpipe.io/dealpipe/internal/api/middleware"
	"dealpipe.io/dealpipe/internal/board"
	"dealpipe.io/dealpipe/internal/governance/audit"
	"dealpipe.io/dealpipe/internal/metrics"
	"dealpipe.io/dealpipe/internal/pipeline"
	"dealpipe.io/dealpipe/internal/repository"
	"dealpipe.io/dealpipe/internal/usecase"
)

// Server holds all API handler dependencies.
type Server struct {
	pool          *pgxpool.Pool
	jwtCfg        middleware.JWTConfig
	registry      *pipeline.Registry
	coordinator   *usecase.TransitionCoordinator
	boardSvc      *board.Service
	calculator    *metrics.Calculator
	deals         *repository.DealRepo
	history       *repository.HistoryRepo
	notifications *repository.NotificationRepo
	auditor       *audit.Logger
}

// ServerDeps holds all dependencies for creating a Server. Manual DI,
// no wire.
type ServerDeps struct {
	Pool          *pgxpool.Pool
	JWTCfg        middleware.JWTConfig
	Registry      *pipeline.Registry
	Coordinator   *usecase.TransitionCoordinator
	BoardSvc      *board.Service
	Calculator    *metrics.Calculator
	Deals         *repository.DealRepo
	History       *repository.HistoryRepo
	Notifications *repository.NotificationRepo
	Audit         *audit.Logger
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		pool:          deps.Pool,
		jwtCfg:        deps.JWTCfg,
		registry:      deps.Registry,
		coordinator:   deps.Coordinator,
		boardSvc:      deps.BoardSvc,
		calculator:    deps.Calculator,
		deals:         deps.Deals,
		history:       deps.History,
		notifications: deps.Notifications,
		auditor:       deps.Audit,
	}
}

// actorFromCtx extracts the authenticated user ID from the request context.
func actorFromCtx(c *gin.Context) string {
	if uid := c.GetString("user_id"); uid != "" {
		return uid
	}
	return "anonymous"
}

const (
	defaultPerPage = 25
	maxPerPage     = 100
)

// pagination parses page/per_page query params with sane bounds.
func pagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}
