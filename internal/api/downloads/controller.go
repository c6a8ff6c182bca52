// Package downloads exposes the two resolution surfaces: the
// streaming, per-session websocket endpoint, and the synchronous
// metadata-only resolve endpoint.
package downloads

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/reelgrab/reelgrab/internal/extractor"
	"github.com/reelgrab/reelgrab/internal/media"
	"github.com/reelgrab/reelgrab/internal/session"
	"github.com/reelgrab/reelgrab/pkg/logger"
)

var controllerLogger = logger.Get("DownloadsController")

type (
	// Store is the slice of the history store sessions finalise in to.
	Store interface {
		Append(media.MediaRecord) error
	}

	ResolveRequest struct {
		URL string `json:"url" form:"url" validate:"required,url"`
	}

	ResolveResponse struct {
		Status  string             `json:"status"`
		Record  *media.MediaRecord `json:"video_info,omitempty"`
		Message string             `json:"message,omitempty"`
	}

	Controller struct {
		validate      *validator.Validate
		upgrader      *websocket.Upgrader
		extractor     extractor.Extractor
		store         Store
		registry      *session.Registry
		sessionConfig session.Config
	}
)

func New(validate *validator.Validate, ex extractor.Extractor, store Store, registry *session.Registry, sessionConfig session.Config) *Controller {
	return &Controller{
		validate: validate,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		extractor:     ex,
		store:         store,
		registry:      registry,
		sessionConfig: sessionConfig,
	}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/ws/", controller.stream)
	eg.POST("/resolve/", controller.resolve)
}

// stream upgrades the request to a websocket and hands the connection
// to a session coordinator, which owns it until the operation reaches
// a terminal state. The handler blocks for the session's lifetime.
func (controller *Controller) stream(ec echo.Context) error {
	socket, err := controller.upgrader.Upgrade(ec.Response(), ec.Request(), nil)
	if err != nil {
		controllerLogger.Emit(logger.ERROR, "Failed to upgrade request to a websocket: %v\n", err)
		return nil
	}

	sess := session.New(&socketConnection{socket: socket}, controller.extractor, controller.store, controller.sessionConfig)
	controller.registry.Add(sess)
	defer controller.registry.Remove(sess.ID())

	sess.Run(ec.Request().Context())
	return nil
}

// resolve performs a synchronous metadata-only resolution. Nothing is
// persisted and no artifact is fetched; this is the non-streaming
// alternative for clients which cannot hold a websocket open.
func (controller *Controller) resolve(ec echo.Context) error {
	var request ResolveRequest
	if err := ec.Bind(&request); err != nil {
		return ec.JSON(http.StatusBadRequest, ResolveResponse{Status: "error", Message: "malformed request"})
	}

	request.URL = strings.TrimSpace(request.URL)
	if err := controller.validate.Struct(&request); err != nil {
		return ec.JSON(http.StatusBadRequest, ResolveResponse{Status: "error", Message: "a valid 'url' is required"})
	}

	ctx := ec.Request().Context()
	if timeout := controller.sessionConfig.ResolveTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	record, err := controller.extractor.Resolve(ctx, request.URL, extractor.MetadataOnly, nil)
	if err != nil {
		message := "media resolution failed unexpectedly"
		var extractionErr *extractor.ExtractionError
		if errors.As(err, &extractionErr) {
			message = extractionErr.Reason
		}

		controllerLogger.Emit(logger.ERROR, "Synchronous resolution of '%s' failed: %v\n", request.URL, err)
		return ec.JSON(http.StatusUnprocessableEntity, ResolveResponse{Status: "error", Message: message})
	}

	record.CreatedAt = time.Now().UTC()
	return ec.JSON(http.StatusOK, ResolveResponse{Status: "success", Record: record})
}
