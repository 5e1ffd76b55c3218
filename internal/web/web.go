package web

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smartcity/internal/telemetry"
	"smartcity/internal/web/api"
	"smartcity/internal/web/middleware"
)

// WebServer exposes the analysis operations over HTTP
type WebServer struct {
	router *gin.Engine
}

// NewWebServer builds the router with all analytics and device routes
func NewWebServer(repo telemetry.Repository, deps api.Dependencies, log *zap.Logger) *WebServer {
	router := gin.New()
	router.Use(middleware.RequestLogger(log), gin.Recovery())

	api.RegisterAnalyticsRoutes(router, deps)
	api.RegisterDeviceRoutes(router, repo, deps)

	return &WebServer{router: router}
}

// Start runs the HTTP server on addr
func (ws *WebServer) Start(addr string) error {
	return ws.router.Run(addr)
}

// Router exposes the gin engine for tests
func (ws *WebServer) Router() *gin.Engine {
	return ws.router
}
