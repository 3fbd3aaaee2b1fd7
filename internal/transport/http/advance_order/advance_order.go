package advanceorder

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
	AdvanceFulfillment(
		ctx context.Context,
		act actor.Actor,
		orderID int64,
		next order.Status,
	) (*order.Order, error)
}

// advanceOrderRequest names the fulfillment step to move to.
type advanceOrderRequest struct {
	Status string `json:"status"`
}

// AdvanceOrder handles the fulfillment progression request.
func AdvanceOrder(w http.ResponseWriter, r *http.Request, service service) {
	act, err := httputil.ActorFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		slog.Error("Error decoding actor for fulfillment", "error", err)

		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)

		return
	}

	req := advanceOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for fulfillment", "error", err)

		return
	}

	next, err := order.ParseStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)

		return
	}

	o, err := service.AdvanceFulfillment(r.Context(), act, orderID, next)
	if err != nil {
		httputil.WriteError(w, err)
		slog.Error("Error advancing order", "order_id", orderID, "error", err)

		return
	}

	httputil.WriteJSON(w, http.StatusOK, o)
}
