package submitorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/localmart/order/internal/service/models/actor"
	"github.com/localmart/order/internal/service/models/order"
	"github.com/localmart/order/internal/service/services/ordersvc"
	"github.com/localmart/order/internal/transport/http/httputil"
)

// service is an interface for the service layer.
type service interface {
	Submit(
		ctx context.Context,
		act actor.Actor,
		model ordersvc.SubmitOrderModel,
	) (*order.Order, error)
}

// itemInSubmitOrderRequest represents an item in a submit order request.
type itemInSubmitOrderRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity"  validate:"gt=0"`
}

// submitOrderRequest represents a submit order request.
type submitOrderRequest struct {
	ShopID          int64                      `json:"shopId"          validate:"gt=0"`
	DeliveryAddress string                     `json:"deliveryAddress" validate:"required"`
	DeliveryPhone   string                     `json:"deliveryPhone"   validate:"required"`
	Notes           string                     `json:"notes"`
	Items           []itemInSubmitOrderRequest `json:"items"           validate:"required,min=1,dive"`
}

// Validate validates the submit order request.
func (r *submitOrderRequest) Validate() error {
	return validator.New().Struct(r)
}

func (r *submitOrderRequest) toModel() ordersvc.SubmitOrderModel {
	items := make([]ordersvc.SubmitItemModel, len(r.Items))
	for i, item := range r.Items {
		items[i] = ordersvc.SubmitItemModel{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	return ordersvc.SubmitOrderModel{
		ShopID:          r.ShopID,
		Items:           items,
		DeliveryAddress: r.DeliveryAddress,
		DeliveryPhone:   r.DeliveryPhone,
		Notes:           r.Notes,
	}
}

// SubmitOrder handles the submit order request.
func SubmitOrder(w http.ResponseWriter, r *http.Request, service service) {
	act, err := httputil.ActorFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		slog.Error("Error decoding actor for order submission", "error", err)

		return
	}

	req := submitOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for order submission", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error validating request body for order submission", "error", err)

		return
	}

	o, err := service.Submit(r.Context(), act, req.toModel())
	if err != nil {
		httputil.WriteError(w, err)
		slog.Error("Error submitting order", "error", err)

		return
	}

	httputil.WriteJSON(w, http.StatusCreated, o)
}
