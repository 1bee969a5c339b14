package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/internal/services"
	"auctionhouse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades subscriber requests onto the live event stream.
type Handler struct {
	lifecycle   *services.LifecycleService
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewHandler(lifecycle *services.LifecycleService, connManager domain.ConnectionManager, log logger.Logger) *Handler {
	return &Handler{
		lifecycle:   lifecycle,
		connManager: connManager,
		log:         log,
	}
}

// Subscribe handles GET /ws/auctions/:id?user_id=<id>. The snapshot is
// fetched before the upgrade so a missing auction still gets a proper HTTP
// status, and sent first after it so reconnecting clients never have to
// reconstruct state from deltas.
func (h *Handler) Subscribe(c echo.Context) error {
	auctionID := c.Param("id")
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	snapshot, err := h.lifecycle.GetAuctionSnapshot(c.Request().Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "auction not found")
		}
		h.log.Error("Failed to load auction for subscription", "auction_id", auctionID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load auction")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	wsConn := NewConnection(conn, userID, auctionID, h.log)
	if err := h.connManager.RegisterConnection(userID, auctionID, wsConn); err != nil {
		wsConn.Close()
		return err
	}

	go wsConn.WritePump()
	go wsConn.ReadPump(func() {
		h.connManager.UnregisterConnection(userID, auctionID, wsConn)
	})

	initial := &domain.Event{
		Type:      domain.EventSnapshot,
		AuctionID: auctionID,
		Snapshot:  snapshot,
		Timestamp: time.Now(),
	}
	if payload, err := json.Marshal(initial); err == nil {
		if err := wsConn.Send(payload); err != nil {
			h.log.Warn("Failed to deliver initial snapshot", "user_id", userID,
				"auction_id", auctionID, "error", err)
		}
	}

	return nil
}

// SubscribeNotifications handles GET /ws/notifications?user_id=<id>. The
// connection carries no auction, so it only ever receives unicast pushes
// (outbid, won, payment required) for the user.
func (h *Handler) SubscribeNotifications(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	wsConn := NewConnection(conn, userID, "", h.log)
	if err := h.connManager.RegisterConnection(userID, "", wsConn); err != nil {
		wsConn.Close()
		return err
	}

	go wsConn.WritePump()
	go wsConn.ReadPump(func() {
		h.connManager.UnregisterConnection(userID, "", wsConn)
	})

	return nil
}
