package sale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"boxoffice/clock"
	"boxoffice/entity"
	"boxoffice/event"

	"github.com/google/uuid"
)

type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type InventoryStore interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, eventID string) (entity.Event, error)
	Decrement(ctx context.Context, tx *sql.Tx, eventID string, quantity uint) error
	Availability(ctx context.Context, eventID string) (available, totalCapacity uint, err error)
}

type TicketLedger interface {
	IssueBatch(ctx context.Context, tx *sql.Tx, tickets []entity.Ticket) error
	ListForCustomer(ctx context.Context, customerID string) ([]entity.Ticket, error)
}

type CustomerStore interface {
	Get(ctx context.Context, customerID string) (entity.Customer, error)
}

type Publisher interface {
	PublishInTx(ctx context.Context, e any, tx *sql.Tx) error
}

const defaultMaxPerPurchase = 10

// Service is the allocator: it owns the transactional purchase path
// and the derived reads over the two stores.
type Service struct {
	tx             TxRunner
	inventory      InventoryStore
	ledger         TicketLedger
	customers      CustomerStore
	publisher      Publisher
	clock          clock.Clock
	maxPerPurchase uint
}

func NewService(tx TxRunner, inventory InventoryStore, ledger TicketLedger, customers CustomerStore, publisher Publisher, clk clock.Clock, opts ...Option) *Service {
	svc := &Service{
		tx:             tx,
		inventory:      inventory,
		ledger:         ledger,
		customers:      customers,
		publisher:      publisher,
		clock:          clk,
		maxPerPurchase: defaultMaxPerPurchase,
	}
	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

type Option func(*Service)

// WithMaxPerPurchase overrides the per-request quantity bound.
func WithMaxPerPurchase(max uint) Option {
	return func(s *Service) {
		if max > 0 {
			s.maxPerPurchase = max
		}
	}
}

type Confirmation struct {
	TicketCodes []string `json:"ticket_codes"`
	Count       int      `json:"count"`
}

// Purchase allocates quantity tickets for the customer, entirely or
// not at all. The event's inventory row is locked for the duration of
// the transaction, so purchases for one event are strictly serialised
// while other events stay unaffected. The purchase confirmation is
// written to the outbox inside the same transaction; delivery happens
// after commit and can never roll the sale back.
func (s *Service) Purchase(ctx context.Context, eventID, customerID string, quantity int) (Confirmation, error) {
	if quantity < 1 || quantity > int(s.maxPerPurchase) {
		return Confirmation{}, fmt.Errorf("quantity %d outside [1, %d]: %w", quantity, s.maxPerPurchase, entity.ErrInvalidQuantity)
	}
	qty := uint(quantity)

	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return Confirmation{}, err
	}

	var codes []string
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		ev, err := s.inventory.GetForUpdate(ctx, tx, eventID)
		if err != nil {
			return err
		}

		if !ev.Active {
			return entity.ErrEventInactive
		}

		if ev.Available < qty {
			return fmt.Errorf("%d requested, %d available: %w", qty, ev.Available, entity.ErrInsufficientInventory)
		}

		if err := s.inventory.Decrement(ctx, tx, eventID, qty); err != nil {
			return err
		}

		tickets, err := s.issueTickets(ctx, tx, ev, customerID, qty)
		if err != nil {
			return err
		}

		codes = make([]string, 0, len(tickets))
		for _, t := range tickets {
			codes = append(codes, t.Code)
		}

		e := event.NewTicketsPurchased(uuid.NewString(), ev, customerID, codes)
		if err := s.publisher.PublishInTx(ctx, e, tx); err != nil {
			return fmt.Errorf("publishing purchase event: %w", err)
		}

		return nil
	})
	if err != nil {
		return Confirmation{}, err
	}

	return Confirmation{
		TicketCodes: codes,
		Count:       len(codes),
	}, nil
}

func (s *Service) issueTickets(ctx context.Context, tx *sql.Tx, ev entity.Event, customerID string, quantity uint) ([]entity.Ticket, error) {
	tickets, err := s.mintTickets(ev, customerID, quantity)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.IssueBatch(ctx, tx, tickets); err != nil {
		if !errors.Is(err, entity.ErrDuplicateCode) {
			return nil, err
		}

		// One retry with fresh codes before surfacing the collision.
		tickets, err = s.mintTickets(ev, customerID, quantity)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.IssueBatch(ctx, tx, tickets); err != nil {
			return nil, err
		}
	}

	return tickets, nil
}

func (s *Service) mintTickets(ev entity.Event, customerID string, quantity uint) ([]entity.Ticket, error) {
	purchasedAt := s.clock.Now()

	tickets := make([]entity.Ticket, 0, quantity)
	for i := uint(0); i < quantity; i++ {
		code, err := newTicketCode()
		if err != nil {
			return nil, fmt.Errorf("generating ticket code: %w", err)
		}

		tickets = append(tickets, entity.Ticket{
			ID:          uuid.NewString(),
			Code:        code,
			EventID:     ev.ID,
			CustomerID:  customerID,
			Status:      entity.TicketStatusSold,
			Price:       ev.Price,
			PurchasedAt: &purchasedAt,
		})
	}

	return tickets, nil
}

type Availability struct {
	Available     uint `json:"available"`
	TotalCapacity uint `json:"total_capacity"`
}

// Availability is a point-in-time read and takes no lock.
func (s *Service) Availability(ctx context.Context, eventID string) (Availability, error) {
	available, totalCapacity, err := s.inventory.Availability(ctx, eventID)
	if err != nil {
		return Availability{}, err
	}

	return Availability{
		Available:     available,
		TotalCapacity: totalCapacity,
	}, nil
}

func (s *Service) TicketsForCustomer(ctx context.Context, customerID string) ([]entity.Ticket, error) {
	return s.ledger.ListForCustomer(ctx, customerID)
}
