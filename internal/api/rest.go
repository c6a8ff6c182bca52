package api

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/reelgrab/reelgrab/internal/api/downloads"
	"github.com/reelgrab/reelgrab/internal/api/videos"
	"github.com/reelgrab/reelgrab/internal/extractor"
	"github.com/reelgrab/reelgrab/internal/session"
	"github.com/reelgrab/reelgrab/pkg/logger"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr      string `toml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
		StaticDirPath string `toml:"static_dir" env:"API_STATIC_DIR" env-default:"./static"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// dataStore is the union of the controllers' store requirements.
	dataStore interface {
		downloads.Store
		videos.Store
	}

	// The RestGateway is a thin wrapper around the Echo HTTP router.
	// Its sole responsibility is to create the routes the server
	// exposes and to hand websocket upgrades over to per-connection
	// sessions.
	RestGateway struct {
		config              *RestConfig
		ec                  *echo.Echo
		registry            *session.Registry
		downloadsController controller
		videosController    controller
	}
)

// NewRestGateway constructs the Echo router and populates it with the
// routes defined by the controllers.
func NewRestGateway(config *RestConfig, ex extractor.Extractor, store dataStore, sessionConfig session.Config) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	validate := validator.New()
	registry := session.NewRegistry()
	gateway := &RestGateway{
		config:              config,
		ec:                  ec,
		registry:            registry,
		downloadsController: downloads.New(validate, ex, store, registry, sessionConfig),
		videosController:    videos.New(store),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Use(middleware.CORS())
	ec.Pre(middleware.AddTrailingSlash())

	ec.Static("/static", config.StaticDirPath)

	downloadGroup := ec.Group("/api/reelgrab/v1/download")
	gateway.downloadsController.SetRoutes(downloadGroup)

	videoGroup := ec.Group("/api/reelgrab/v1/videos")
	gateway.videosController.SetRoutes(videoGroup)

	return gateway
}

// Run starts the HTTP listener, blocking until the provided context is
// cancelled or the listener fails.
func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Wait()

	// Parent context cancellation is an orderly shutdown, not an error.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}
	return nil
}
