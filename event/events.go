package event

import (
	"time"

	"boxoffice/entity"

	"github.com/ThreeDotsLabs/watermill"
)

type header struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func newHeader(idempotencyKey string) header {
	return header{
		ID:             watermill.NewUUID(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type TicketsPurchased struct {
	Header      header       `json:"header"`
	EventID     string       `json:"event_id"`
	EventName   string       `json:"event_name"`
	CustomerID  string       `json:"customer_id"`
	Quantity    uint         `json:"quantity"`
	TicketCodes []string     `json:"ticket_codes"`
	UnitPrice   entity.Money `json:"unit_price"`
}

func NewTicketsPurchased(idempotencyKey string, ev entity.Event, customerID string, codes []string) TicketsPurchased {
	return TicketsPurchased{
		Header:      newHeader(idempotencyKey),
		EventID:     ev.ID,
		EventName:   ev.Name,
		CustomerID:  customerID,
		Quantity:    uint(len(codes)),
		TicketCodes: codes,
		UnitPrice:   ev.Price,
	}
}
