package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4" // echo defines request context types
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/idempotency"
	"github.com/iliyamo/hotel-reservation-engine/internal/middleware"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// Header names shared with clients.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

var errNoActor = errors.New("no authenticated actor")

// currentActor returns the actor set by the JWT middleware.
func currentActor(c echo.Context) (model.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, errNoActor
	}
	return a, nil
}

func idempotencyKey(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(HeaderIdempotencyKey))
}

// writeResponse sends a cached or fresh façade response byte for byte.
func writeResponse(c echo.Context, resp idempotency.Response) error {
	if resp.Replayed {
		c.Response().Header().Set(HeaderReplayed, "true")
	}
	return c.JSONBlob(resp.Status, resp.Body)
}

// errorWriter renders errors as {"error": code, "message": text}.
type errorWriter struct {
	log logrus.FieldLogger
}

func (w errorWriter) write(c echo.Context, err error) error {
	if errors.Is(err, errNoActor) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "authentication required"})
	}
	status, code := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		entry := w.log.WithFields(logrus.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
			"code":   code,
		}).WithError(err)
		if status == http.StatusServiceUnavailable {
			entry.Warn("http: request not served")
		} else {
			entry.Error("http: request failed")
		}
	}
	if status == http.StatusServiceUnavailable {
		c.Response().Header().Set("Retry-After", "1")
	}
	return c.JSON(status, echo.Map{"error": code, "message": apperr.Message(err)})
}

func badRequest(c echo.Context, code, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": code, "message": msg})
}
