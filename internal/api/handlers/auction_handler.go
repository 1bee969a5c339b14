package handlers

import (
	"net/http"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/internal/services"
	"auctionhouse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type AuctionHandler struct {
	lifecycle *services.LifecycleService
	log       logger.Logger
}

type CreateAuctionRequest struct {
	Title     string    `json:"title"`
	ProductID string    `json:"product_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	PriceStep int64     `json:"price_step"`
}

type AuctionResponse struct {
	AuctionID string    `json:"auction_id"`
	Title     string    `json:"title"`
	ProductID string    `json:"product_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	PriceStep int64     `json:"price_step"`
	Status    string    `json:"status"`
	WinnerID  string    `json:"winner_id,omitempty"`
}

type BidResponse struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func NewAuctionHandler(lifecycle *services.LifecycleService, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		lifecycle: lifecycle,
		log:       log,
	}
}

func toAuctionResponse(auction *domain.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID: auction.ID,
		Title:     auction.Title,
		ProductID: auction.ProductID,
		StartTime: auction.StartTime,
		EndTime:   auction.EndTime,
		PriceStep: auction.PriceStep,
		Status:    auction.Status.String(),
		WinnerID:  auction.WinnerID,
	}
}

func toBidResponse(bid *domain.Bid) BidResponse {
	return BidResponse{
		BidID:     bid.ID,
		AuctionID: bid.AuctionID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		Status:    bid.Status.String(),
		CreatedAt: bid.CreatedAt,
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	auction, err := h.lifecycle.CreateAuction(c.Request().Context(),
		req.Title, req.ProductID, req.StartTime, req.EndTime, req.PriceStep)
	if err != nil {
		h.log.Error("Failed to create auction", "error", err)
		return respondError(c, err)
	}

	h.log.Info("Auction created", "auction_id", auction.ID)
	return c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

// GetAuction returns the live snapshot, reconciling the lifecycle first so
// viewers never see a stale status.
func (h *AuctionHandler) GetAuction(c echo.Context) error {
	snapshot, err := h.lifecycle.GetAuctionSnapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (h *AuctionHandler) ListBids(c echo.Context) error {
	bids, err := h.lifecycle.ListBids(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	responses := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		responses = append(responses, toBidResponse(bid))
	}
	return c.JSON(http.StatusOK, responses)
}

func (h *AuctionHandler) GetHighestBid(c echo.Context) error {
	bid, err := h.lifecycle.GetHighestBid(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if bid == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"bid": nil})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"bid": toBidResponse(bid)})
}

func (h *AuctionHandler) CancelAuction(c echo.Context) error {
	auctionID := c.Param("id")
	if err := h.lifecycle.CancelAuction(c.Request().Context(), auctionID); err != nil {
		h.log.Error("Failed to cancel auction", "auction_id", auctionID, "error", err)
		return respondError(c, err)
	}

	h.log.Info("Auction cancelled", "auction_id", auctionID)
	return c.JSON(http.StatusOK, map[string]string{"message": "Auction cancelled"})
}
