package message

import (
	"context"
	"fmt"

	"boxoffice/entity"
	"boxoffice/event"

	"github.com/google/uuid"
)

type NotificationStore interface {
	Add(ctx context.Context, n entity.Notification) error
}

// handleSendPurchaseConfirmation materialises a purchase confirmation
// for the buyer. The notification ID is derived from the event's
// idempotency key, so redeliveries collapse into one record.
func handleSendPurchaseConfirmation(store NotificationStore) func(ctx context.Context, e *event.TicketsPurchased) error {
	return func(ctx context.Context, e *event.TicketsPurchased) error {
		n := entity.Notification{
			ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte("purchase-confirmation:"+e.Header.IdempotencyKey)).String(),
			CustomerID: e.CustomerID,
			Title:      "Purchase confirmed",
			Message:    fmt.Sprintf("You bought %d ticket(s) for %s", e.Quantity, e.EventName),
			Kind:       entity.NotificationKindPurchase,
			CreatedAt:  e.Header.PublishedAt,
		}

		if err := store.Add(ctx, n); err != nil {
			return fmt.Errorf("storing notification: %w", err)
		}

		return nil
	}
}
