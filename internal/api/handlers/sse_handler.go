package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/internal/services"
	"auctionhouse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SSEHandler streams auction snapshots over Server-Sent Events as a fallback
// for clients that cannot hold a websocket. It polls the store and only
// emits when the snapshot changed, with a periodic keep-alive in between.
type SSEHandler struct {
	lifecycle    *services.LifecycleService
	pollInterval time.Duration
	heartbeat    time.Duration
	log          logger.Logger
}

func NewSSEHandler(lifecycle *services.LifecycleService, pollInterval, heartbeat time.Duration, log logger.Logger) *SSEHandler {
	return &SSEHandler{
		lifecycle:    lifecycle,
		pollInterval: pollInterval,
		heartbeat:    heartbeat,
		log:          log,
	}
}

// Stream handles GET /api/v1/auctions/:id/stream.
func (h *SSEHandler) Stream(c echo.Context) error {
	auctionID := c.Param("id")
	ctx := c.Request().Context()

	snapshot, err := h.lifecycle.GetAuctionSnapshot(ctx, auctionID)
	if err != nil {
		return respondError(c, err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)

	lastPayload, err := writeSnapshot(resp, snapshot)
	if err != nil {
		return nil
	}
	if isTerminal(snapshot.Status) {
		return nil
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	lastWrite := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snapshot, err := h.lifecycle.GetAuctionSnapshot(ctx, auctionID)
			if err != nil {
				h.log.Warn("Snapshot poll failed", "auction_id", auctionID, "error", err)
				continue
			}

			payload, err := json.Marshal(snapshot)
			if err != nil {
				continue
			}

			if string(payload) != lastPayload {
				if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
					return nil
				}
				resp.Flush()
				lastPayload = string(payload)
				lastWrite = time.Now()

				if isTerminal(snapshot.Status) {
					return nil
				}
				continue
			}

			// Nothing changed; keep intermediaries from timing out the
			// connection.
			if time.Since(lastWrite) >= h.heartbeat {
				if _, err := fmt.Fprint(resp, ": keep-alive\n\n"); err != nil {
					return nil
				}
				resp.Flush()
				lastWrite = time.Now()
			}
		}
	}
}

func writeSnapshot(resp *echo.Response, snapshot *domain.Snapshot) (string, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
		return "", err
	}
	resp.Flush()
	return string(payload), nil
}

func isTerminal(status string) bool {
	return status == domain.AuctionCompleted.String() || status == domain.AuctionCancelled.String()
}
