package handlers

import (
	"errors"
	"net/http"

	"auctionhouse/internal/domain"

	"github.com/labstack/echo/v4"
)

const userHeader = "X-User-ID"

// requireUser reads the authenticated user from the gateway-injected header.
func requireUser(c echo.Context) (string, error) {
	userID := c.Request().Header.Get(userHeader)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return userID, nil
}

// respondError maps domain errors onto HTTP responses. A too-low bid carries
// the computed minimum so clients can retry without another round trip.
func respondError(c echo.Context, err error) error {
	if tooLow, ok := domain.AsBidTooLow(err); ok {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":       err.Error(),
			"minimum_bid": tooLow.Minimum,
		})
	}

	switch {
	case errors.Is(err, domain.ErrAuctionNotFound),
		errors.Is(err, domain.ErrBidNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrValidation):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrPermissionDenied):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrDepositRequired):
		return c.JSON(http.StatusPaymentRequired, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrAuctionNotActive),
		errors.Is(err, domain.ErrInvalidState):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": "concurrent update, please retry"})
	case errors.Is(err, domain.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
