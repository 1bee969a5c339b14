package handlers

import (
	"net/http"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type NotificationHandler struct {
	notifications domain.NotificationRepository
	log           logger.Logger
}

type NotificationResponse struct {
	NotificationID string    `json:"notification_id"`
	AuctionID      string    `json:"auction_id,omitempty"`
	Kind           string    `json:"kind"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewNotificationHandler(notifications domain.NotificationRepository, log logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		log:           log,
	}
}

func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	notifications, err := h.notifications.GetNotificationsByUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	responses := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, NotificationResponse{
			NotificationID: n.ID,
			AuctionID:      n.AuctionID,
			Kind:           string(n.Kind),
			Title:          n.Title,
			Message:        n.Message,
			Read:           n.Read,
			CreatedAt:      n.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, responses)
}

// MarkRead scopes the update to the requesting user so one user cannot
// acknowledge another's notifications.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	notificationID := c.Param("id")
	if err := h.notifications.MarkNotificationRead(c.Request().Context(), notificationID, userID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Notification marked as read"})
}
