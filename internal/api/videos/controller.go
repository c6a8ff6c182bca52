// Package videos exposes the bounded history: a most-recent-first
// listing of completed items, and idempotent removal of an entry
// together with its backing artifact.
package videos

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/reelgrab/reelgrab/internal/media"
	"github.com/reelgrab/reelgrab/pkg/logger"
)

var controllerLogger = logger.Get("VideosController")

type (
	// Store is the slice of the history store this controller serves.
	Store interface {
		Recent() []media.MediaRecord
		Delete(id string) (bool, error)
	}

	StatusResponse struct {
		Status  string `json:"status"`
		Message string `json:"message,omitempty"`
	}

	Controller struct {
		store Store
	}
)

func New(store Store) *Controller {
	return &Controller{store: store}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.DELETE("/:id/", controller.delete)
}

// list returns the retained records, most-recent-first. This is the
// listing surface the UI renders from; rendering itself happens
// client-side.
func (controller *Controller) list(ec echo.Context) error {
	return ec.JSON(http.StatusOK, controller.store.Recent())
}

// delete removes the first record matching the 'id' path param along
// with its artifact. A missing record is a status, not a failure:
// deleting the same id twice yields success then not-found.
func (controller *Controller) delete(ec echo.Context) error {
	id := ec.Param("id")

	deleted, err := controller.store.Delete(id)
	if err != nil {
		// The record is already gone from the in-memory collection;
		// a failed persist is best-effort and must not fail the call.
		controllerLogger.Emit(logger.WARNING, "History persistence failed after deleting %s: %v\n", id, err)
	}

	if !deleted {
		return ec.JSON(http.StatusNotFound, StatusResponse{Status: "error", Message: "video not found"})
	}

	return ec.JSON(http.StatusOK, StatusResponse{Status: "success"})
}
