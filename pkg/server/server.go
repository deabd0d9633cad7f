package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"

	"github.com/kerbaras/onepiece-offline/pkg/binder"
	"github.com/kerbaras/onepiece-offline/pkg/errcodes"
	"github.com/kerbaras/onepiece-offline/pkg/services"
)

const serviceName = "onepiece-offline-api"

func New(ctrl *services.Controller) *http.Server {
	return &http.Server{
		Addr:              ctrl.Config.ServerAddr(),
		Handler:           NewHandler(ctrl),
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// NewHandler builds the echo instance serving the HTTP API.
func NewHandler(ctrl *services.Controller) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Binder = binder.New()

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     ctrl.Config.Server.CORSOrigins,
		AllowCredentials: true,
	}))

	health.RegisterRoutes(e)

	h := &handler{ctrl: ctrl}
	api := e.Group("/api")
	api.GET("/health", h.health)

	api.GET("/chapters", h.listChapters)
	api.POST("/chapters/delete-multiple", h.deleteMultiple)
	api.POST("/chapters/:number", h.download)
	api.DELETE("/chapters/:number", h.deleteChapter)
	api.GET("/chapters/:number/:format", h.file)
	api.GET("/latest", h.latest)
	api.GET("/available-chapters", h.available)
	api.POST("/notify", h.notify)

	api.GET("/push/vapid-public-key", h.vapidPublicKey)
	api.POST("/push/subscribe", h.subscribe)
	api.POST("/push/unsubscribe", h.unsubscribe)
	api.POST("/push/send", h.sendPush)
	api.GET("/push/stats", h.pushStats)

	api.GET("/scheduler", h.schedulerStatus)
	api.POST("/scheduler/poll", h.poll)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle
	return e
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
