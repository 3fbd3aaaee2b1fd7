package cancelorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/localmart/order/internal/service/models/actor"
	"github.com/localmart/order/internal/service/models/order"
	"github.com/localmart/order/internal/transport/http/httputil"
)

// service is an interface for the service layer.
type service interface {
	Cancel(
		ctx context.Context,
		act actor.Actor,
		orderID int64,
		reason string,
	) (*order.Order, error)
}

// cancelOrderRequest represents a cancel order request.
type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder handles the cancellation request.
func CancelOrder(w http.ResponseWriter, r *http.Request, service service) {
	act, err := httputil.ActorFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		slog.Error("Error decoding actor for cancellation", "error", err)

		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)

		return
	}

	req := cancelOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for cancellation", "error", err)

		return
	}

	o, err := service.Cancel(r.Context(), act, orderID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		slog.Error("Error cancelling order", "order_id", orderID, "error", err)

		return
	}

	httputil.WriteJSON(w, http.StatusOK, o)
}
