package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/localmart/order/internal/service/models/actor"
	"github.com/localmart/order/internal/service/models/currency"
	"github.com/localmart/order/internal/service/models/delivery"
	"github.com/localmart/order/internal/service/models/order"
	"github.com/localmart/order/internal/service/models/orderitem"
	"github.com/localmart/order/internal/service/models/product"
	"github.com/localmart/order/internal/service/models/shop"
)

// Actor identification headers, filled in by the API gateway after
// authentication.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

var ErrMissingActor = errors.New("actor headers are missing")

// ActorFromRequest decodes the acting party from the request headers.
func ActorFromRequest(r *http.Request) (actor.Actor, error) {
	rawID := r.Header.Get(HeaderActorID)
	rawRole := r.Header.Get(HeaderActorRole)
	if rawID == "" || rawRole == "" {
		return actor.Actor{}, ErrMissingActor
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return actor.Actor{}, ErrMissingActor
	}

	role, err := actor.ParseRole(rawRole)
	if err != nil {
		return actor.Actor{}, err
	}

	return actor.Actor{UserID: id, Role: role}, nil
}

type errorResponse struct {
	Error      string              `json:"error"`
	Retryable  bool                `json:"retryable,omitempty"`
	Shortfalls []product.Shortfall `json:"shortfalls,omitempty"`
}

// WriteError maps a service error onto an HTTP status and JSON body.
func WriteError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var stockErr *product.InsufficientStockError

	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, orderitem.ErrItemNotFound),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, shop.ErrShopNotFound),
		errors.Is(err, delivery.ErrAssignmentNotFound):
		status = http.StatusNotFound
	case errors.As(err, &stockErr):
		status = http.StatusConflict
		resp.Shortfalls = stockErr.Shortfalls
	case errors.Is(err, product.ErrConcurrentModification):
		status = http.StatusConflict
		resp.Retryable = true
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, orderitem.ErrItemAlreadyDecided):
		status = http.StatusConflict
	case errors.Is(err, actor.ErrNotAllowed):
		status = http.StatusForbidden
	case errors.Is(err, ErrMissingActor),
		errors.Is(err, actor.ErrInvalidRole),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrAmountMismatch),
		errors.Is(err, order.ErrCancelReasonRequired),
		errors.Is(err, order.ErrPaymentMethodRequired),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, orderitem.ErrInvalidQuantity),
		errors.Is(err, orderitem.ErrInvalidApprovalStatus),
		errors.Is(err, orderitem.ErrRejectionReasonRequired),
		errors.Is(err, currency.ErrInvalidCurrency):
		status = http.StatusBadRequest
	}

	WriteJSON(w, status, resp)
}

// WriteJSON encodes a response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response body", "error", err)
	}
}
