package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/localmart/order/internal/service/models/actor"
	"github.com/localmart/order/internal/service/models/notification"
	"github.com/localmart/order/internal/service/models/order"
	"github.com/localmart/order/internal/service/models/orderitem"
	"github.com/localmart/order/internal/service/services/ordersvc"
	advanceorder "github.com/localmart/order/internal/transport/http/advance_order"
	cancelorder "github.com/localmart/order/internal/transport/http/cancel_order"
	decideitem "github.com/localmart/order/internal/transport/http/decide_item"
	listnotifications "github.com/localmart/order/internal/transport/http/list_notifications"
	listorders "github.com/localmart/order/internal/transport/http/list_orders"
	payorder "github.com/localmart/order/internal/transport/http/pay_order"
	submitorder "github.com/localmart/order/internal/transport/http/submit_order"
	"github.com/localmart/order/pkg/http/middleware/trace"
	"github.com/localmart/order/pkg/logger"
	"github.com/spf13/viper"
)

type orderService interface {
	Submit(
		ctx context.Context,
		act actor.Actor,
		model ordersvc.SubmitOrderModel,
	) (*order.Order, error)
	DecideItem(
		ctx context.Context,
		act actor.Actor,
		orderID int64,
		itemID int64,
		decision orderitem.ApprovalStatus,
		reason string,
	) (*order.Order, error)
	Pay(
		ctx context.Context,
		act actor.Actor,
		orderID int64,
		paymentMethod string,
	) (*ordersvc.PayResult, error)
	Cancel(
		ctx context.Context,
		act actor.Actor,
		orderID int64,
		reason string,
	) (*order.Order, error)
	AdvanceFulfillment(
		ctx context.Context,
		act actor.Actor,
		orderID int64,
		next order.Status,
	) (*order.Order, error)
	GetOrders(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
}

type notifyService interface {
	ListForUser(
		ctx context.Context,
		userID int64,
		limit, offset int,
	) ([]notification.Notification, error)
}

type HTTPTransport struct {
	server  *http.Server
	router  *chi.Mux
	orders  orderService
	notices notifyService
}

func NewHTTPTransport(orders orderService, notices notifyService) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	return &HTTPTransport{
		server:  server,
		router:  router,
		orders:  orders,
		notices: notices,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

// Shutdown stops accepting new connections and drains in-flight requests.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.listOrders)
			r.Post("/", h.submitOrder)
			r.Post("/{orderID}/items/{itemID}/decision", h.decideItem)
			r.Post("/{orderID}/pay", h.payOrder)
			r.Post("/{orderID}/cancel", h.cancelOrder)
			r.Post("/{orderID}/advance", h.advanceOrder)
		})
		r.Get("/notifications", h.listNotifications)
	})
}

func (h *HTTPTransport) submitOrder(w http.ResponseWriter, r *http.Request) {
	submitorder.SubmitOrder(w, r, h.orders)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.orders)
}

func (h *HTTPTransport) decideItem(w http.ResponseWriter, r *http.Request) {
	decideitem.DecideItem(w, r, h.orders)
}

func (h *HTTPTransport) payOrder(w http.ResponseWriter, r *http.Request) {
	payorder.PayOrder(w, r, h.orders)
}

func (h *HTTPTransport) cancelOrder(w http.ResponseWriter, r *http.Request) {
	cancelorder.CancelOrder(w, r, h.orders)
}

func (h *HTTPTransport) advanceOrder(w http.ResponseWriter, r *http.Request) {
	advanceorder.AdvanceOrder(w, r, h.orders)
}

func (h *HTTPTransport) listNotifications(w http.ResponseWriter, r *http.Request) {
	listnotifications.ListNotifications(w, r, h.notices)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
