package payorder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/localmart/order/internal/service/models/actor"
	"github.com/localmart/order/internal/service/models/order"
	"github.com/localmart/order/internal/service/services/ordersvc"
	"github.com/localmart/order/internal/transport/http/httputil"
)

type stubService struct {
	result *ordersvc.PayResult
	err    error

	gotActor  actor.Actor
	gotOrder  int64
	gotMethod string
}

func (s *stubService) Pay(
	_ context.Context,
	act actor.Actor,
	orderID int64,
	paymentMethod string,
) (*ordersvc.PayResult, error) {
	s.gotActor = act
	s.gotOrder = orderID
	s.gotMethod = paymentMethod
	return s.result, s.err
}

func doRequest(t *testing.T, svc *stubService, orderID, body string, withActor bool) *httptest.ResponseRecorder {
	t.Helper()

	router := chi.NewRouter()
	router.Post("/api/orders/{orderID}/pay", func(w http.ResponseWriter, r *http.Request) {
		PayOrder(w, r, svc)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID+"/pay", strings.NewReader(body))
	if withActor {
		req.Header.Set(httputil.HeaderActorID, "7")
		req.Header.Set(httputil.HeaderActorRole, "customer")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPayOrder(t *testing.T) {
	t.Run("forwards the payment to the service", func(t *testing.T) {
		svc := &stubService{result: &ordersvc.PayResult{
			Order:            &order.Order{ID: 42, Status: order.StatusPaid},
			DeliveryPrepared: true,
		}}

		rec := doRequest(t, svc, "42", `{"paymentMethod":"upi"}`, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		if svc.gotActor.UserID != 7 || svc.gotActor.Role != actor.RoleCustomer {
			t.Errorf("unexpected actor %+v", svc.gotActor)
		}
		if svc.gotOrder != 42 || svc.gotMethod != "upi" {
			t.Errorf("unexpected call: order %d method %q", svc.gotOrder, svc.gotMethod)
		}

		var result ordersvc.PayResult
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if result.Order.Status != order.StatusPaid || !result.DeliveryPrepared {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("missing actor headers", func(t *testing.T) {
		svc := &stubService{}
		rec := doRequest(t, svc, "42", `{"paymentMethod":"upi"}`, false)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("bad order id", func(t *testing.T) {
		svc := &stubService{}
		rec := doRequest(t, svc, "forty-two", `{"paymentMethod":"upi"}`, true)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("service errors are mapped", func(t *testing.T) {
		svc := &stubService{err: order.NewInvalidTransitionError(42, order.StatusPendingApproval, order.StatusPaid)}
		rec := doRequest(t, svc, "42", `{"paymentMethod":"upi"}`, true)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})
}
