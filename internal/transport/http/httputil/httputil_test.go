package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/localmart/order/internal/service/models/actor"
	"github.com/localmart/order/internal/service/models/order"
	"github.com/localmart/order/internal/service/models/orderitem"
	"github.com/localmart/order/internal/service/models/product"
)

func TestActorFromRequest(t *testing.T) {
	request := func(id, role string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		if id != "" {
			r.Header.Set(HeaderActorID, id)
		}
		if role != "" {
			r.Header.Set(HeaderActorRole, role)
		}
		return r
	}

	t.Run("parses both headers", func(t *testing.T) {
		act, err := ActorFromRequest(request("7", "customer"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if act.UserID != 7 || act.Role != actor.RoleCustomer {
			t.Errorf("unexpected actor %+v", act)
		}
	})

	t.Run("missing headers", func(t *testing.T) {
		if _, err := ActorFromRequest(request("", "")); !errors.Is(err, ErrMissingActor) {
			t.Errorf("expected ErrMissingActor, got %v", err)
		}
		if _, err := ActorFromRequest(request("7", "")); !errors.Is(err, ErrMissingActor) {
			t.Errorf("expected ErrMissingActor without role, got %v", err)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		if _, err := ActorFromRequest(request("zero", "customer")); !errors.Is(err, ErrMissingActor) {
			t.Errorf("expected ErrMissingActor, got %v", err)
		}
		if _, err := ActorFromRequest(request("-3", "customer")); !errors.Is(err, ErrMissingActor) {
			t.Errorf("expected ErrMissingActor for a negative id, got %v", err)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		if _, err := ActorFromRequest(request("7", "superuser")); !errors.Is(err, actor.ErrInvalidRole) {
			t.Errorf("expected ErrInvalidRole, got %v", err)
		}
	})
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"order not found", order.ErrOrderNotFound, http.StatusNotFound},
		{"item not found", orderitem.ErrItemNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("loading: %w", order.ErrOrderNotFound), http.StatusNotFound},
		{"invalid transition", order.NewInvalidTransitionError(1, order.StatusPaid, order.StatusCancelled), http.StatusConflict},
		{"already decided", orderitem.ErrItemAlreadyDecided, http.StatusConflict},
		{"concurrent modification", product.ErrConcurrentModification, http.StatusConflict},
		{"not allowed", actor.ErrNotAllowed, http.StatusForbidden},
		{"missing actor", ErrMissingActor, http.StatusBadRequest},
		{"empty cart", order.ErrEmptyCart, http.StatusBadRequest},
		{"no payment method", order.ErrPaymentMethodRequired, http.StatusBadRequest},
		{"unknown failure", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tc.err)

			if rec.Code != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}
		})
	}

	t.Run("insufficient stock carries shortfalls", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, product.NewInsufficientStockError(product.Shortfall{
			ProductID: 10,
			Requested: 3,
			Available: 1,
		}))

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}

		var body struct {
			Shortfalls []product.Shortfall `json:"shortfalls"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if len(body.Shortfalls) != 1 || body.Shortfalls[0].ProductID != 10 {
			t.Errorf("expected the shortfall in the body, got %+v", body.Shortfalls)
		}
	})

	t.Run("concurrent modification is marked retryable", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, product.ErrConcurrentModification)

		var body struct {
			Retryable bool `json:"retryable"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if !body.Retryable {
			t.Error("expected retryable true")
		}
	})
}
