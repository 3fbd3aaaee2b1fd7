package listnotifications

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/localmart/order/internal/service/models/notification"
	"github.com/localmart/order/internal/transport/http/httputil"
)

type service interface {
	ListForUser(
		ctx context.Context,
		userID int64,
		limit, offset int,
	) ([]notification.Notification, error)
}

type queryNotificationsRequest struct {
	Limit  int `schema:"limit,omitempty"`
	Offset int `schema:"offset,omitempty"`
}

// ListNotifications returns the acting user's notifications, newest first.
func ListNotifications(w http.ResponseWriter, r *http.Request, service service) {
	act, err := httputil.ActorFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		slog.Error("Error decoding actor for notifications", "error", err)

		return
	}

	decoder := schema.NewDecoder()
	query := &queryNotificationsRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request", "error", err)

		return
	}

	notifications, err := service.ListForUser(r.Context(), act.UserID, query.Limit, query.Offset)
	if err != nil {
		httputil.WriteError(w, err)
		slog.Error("Error getting notifications", "user_id", act.UserID, "error", err)

		return
	}

	httputil.WriteJSON(w, http.StatusOK, notifications)
}
