package handlers

import (
	"net/http"

	"auctionhouse/internal/services"
	"auctionhouse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type BidHandler struct {
	bidding *services.BidService
	log     logger.Logger
}

type PlaceBidRequest struct {
	AuctionID string `json:"auction_id"`
	Amount    int64  `json:"amount"`
}

func NewBidHandler(bidding *services.BidService, log logger.Logger) *BidHandler {
	return &BidHandler{
		bidding: bidding,
		log:     log,
	}
}

func (h *BidHandler) PlaceBid(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	bid, err := h.bidding.PlaceBid(c.Request().Context(), req.AuctionID, userID, req.Amount)
	if err != nil {
		h.log.Info("Bid rejected", "auction_id", req.AuctionID, "user_id", userID,
			"amount", req.Amount, "error", err)
		return respondError(c, err)
	}

	h.log.Info("Bid placed", "bid_id", bid.ID, "auction_id", bid.AuctionID,
		"user_id", userID, "amount", bid.Amount)
	return c.JSON(http.StatusCreated, toBidResponse(bid))
}

func (h *BidHandler) CancelBid(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	bidID := c.Param("id")
	if err := h.bidding.CancelBid(c.Request().Context(), bidID, userID); err != nil {
		h.log.Info("Bid cancellation rejected", "bid_id", bidID, "user_id", userID, "error", err)
		return respondError(c, err)
	}

	h.log.Info("Bid cancelled", "bid_id", bidID, "user_id", userID)
	return c.JSON(http.StatusOK, map[string]string{"message": "Bid cancelled"})
}

func (h *BidHandler) ListMyBids(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	bids, err := h.bidding.GetBidsByUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	responses := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		responses = append(responses, toBidResponse(bid))
	}
	return c.JSON(http.StatusOK, responses)
}
