package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "docquery/internal/app"
	"docquery/internal/bootstrap"
	"docquery/internal/transport/http/handler"
	"docquery/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	queryService := appsvc.NewQueryService(app.Pipeline, app.Optimizer, app.LogPublisher)
	queryHandler := handler.NewQueryHandler(queryService)
	authHandler := handler.NewAuthHandler(
		app.Config.Auth.APIToken,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/token", authHandler.IssueToken)

	authed := v1.Group("")
	authed.Use(middleware.AuthBearer(app.Config.Auth.APIToken, app.Config.Auth.JWTSecret))
	authed.POST("/query", queryHandler.Run)
	authed.POST("/decision", queryHandler.Decision)
	authed.GET("/metrics", queryHandler.Metrics)

	logHandler := handler.NewLogHandler(app.QueryLogs, app.DocumentLogs)
	authed.GET("/logs/queries", logHandler.QueryLogs)
	authed.GET("/logs/documents", logHandler.DocumentLogs)

	return router
}
