package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/youruser/itemart/internal/background"
	imagepkg "github.com/youruser/itemart/internal/image"
	"github.com/youruser/itemart/internal/items"
	"github.com/youruser/itemart/internal/locate"
)

// statusFor maps a pipeline failure to a response status and a message
// safe to return to clients. id < 0 means the failure is not about one item.
func statusFor(id int64, err error) (int, string) {
	var fe *imagepkg.FetchError
	switch {
	case errors.Is(err, items.ErrDataUnavailable):
		return http.StatusInternalServerError, "Item data not loaded. Check server logs."
	case errors.Is(err, items.ErrNotFound):
		return http.StatusNotFound, fmt.Sprintf("Item with ID %d not found.", id)
	case errors.Is(err, background.ErrUnavailable):
		return http.StatusInternalServerError, "Background image not found and default is missing."
	case errors.Is(err, locate.ErrNotFound):
		return http.StatusNotFound, fmt.Sprintf("Image for item %d not found in any repository.", id)
	case errors.As(err, &fe):
		switch fe.Kind {
		case imagepkg.KindDecode:
			return http.StatusBadGateway, "External source did not return a valid image."
		case imagepkg.KindRemote:
			return http.StatusBadGateway, fmt.Sprintf("External source returned status %d.", fe.Status)
		default:
			return http.StatusBadGateway, "Could not fetch item image from external source."
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Timed out resolving item image."
	}
	return http.StatusInternalServerError, "Internal server error."
}

func writeError(c *gin.Context, id int64, err error) {
	status, msg := statusFor(id, err)
	if status >= http.StatusInternalServerError {
		slog.Error("Item image request failed", "id", id, "status", status, "err", err)
	} else {
		slog.Warn("Item image request rejected", "id", id, "status", status, "err", err)
	}
	c.JSON(status, gin.H{"error": msg})
}
