package inotificationrepo

import (
	"context"

	"github.com/localmart/order/internal/service/models/notification"
)

// INotificationRepository is an interface for notification postgres
// repository.
type INotificationRepository interface {
	Insert(ctx context.Context, n notification.Notification) error
	QueryByUser(ctx context.Context, userID int64, limit, offset int) ([]notification.Notification, error)
}
