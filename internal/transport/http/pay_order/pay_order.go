package payorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/localmart/order/internal/service/models/actor"
	"github.com/localmart/order/internal/service/services/ordersvc"
	"github.com/localmart/order/internal/transport/http/httputil"
)

// service is an interface for the service layer.
type service interface {
	Pay(
		ctx context.Context,
		act actor.Actor,
		orderID int64,
		paymentMethod string,
	) (*ordersvc.PayResult, error)
}

// payOrderRequest represents a pay order request.
type payOrderRequest struct {
	PaymentMethod string `json:"paymentMethod"`
}

// PayOrder handles the payment request. Paying twice is not an error: the
// second call reports the already paid order.
func PayOrder(w http.ResponseWriter, r *http.Request, service service) {
	act, err := httputil.ActorFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		slog.Error("Error decoding actor for payment", "error", err)

		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)

		return
	}

	req := payOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for payment", "error", err)

		return
	}

	result, err := service.Pay(r.Context(), act, orderID, req.PaymentMethod)
	if err != nil {
		httputil.WriteError(w, err)
		slog.Error("Error paying order", "order_id", orderID, "error", err)

		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
