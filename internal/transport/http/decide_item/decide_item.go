package decideitem

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/localmart/order/internal/service/models/actor"
	"github.com/localmart/order/internal/service/models/order"
	"github.com/localmart/order/internal/service/models/orderitem"
	"github.com/localmart/order/internal/transport/http/httputil"
)

// service is an interface for the service layer.
type service interface {
	DecideItem(
		ctx context.Context,
		act actor.Actor,
		orderID int64,
		itemID int64,
		decision orderitem.ApprovalStatus,
		reason string,
	) (*order.Order, error)
}

// decideItemRequest represents the shop's decision on one order item.
type decideItemRequest struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Reason   string `json:"reason"`
}

// Validate validates the decide item request.
func (r *decideItemRequest) Validate() error {
	return validator.New().Struct(r)
}

// DecideItem handles the item approval request.
func DecideItem(w http.ResponseWriter, r *http.Request, service service) {
	act, err := httputil.ActorFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		slog.Error("Error decoding actor for item decision", "error", err)

		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)

		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)

		return
	}

	req := decideItemRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for item decision", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error validating request body for item decision", "error", err)

		return
	}

	decision, err := orderitem.ParseApprovalStatus(req.Decision)
	if err != nil {
		httputil.WriteError(w, err)

		return
	}

	o, err := service.DecideItem(r.Context(), act, orderID, itemID, decision, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		slog.Error("Error deciding order item",
			"order_id", orderID,
			"item_id", itemID,
			"error", err,
		)

		return
	}

	httputil.WriteJSON(w, http.StatusOK, o)
}
