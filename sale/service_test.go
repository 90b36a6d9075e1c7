package sale_test

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"boxoffice/clock"
	"boxoffice/entity"
	"boxoffice/sale"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

func TestService_Purchase(t *testing.T) {
	t.Parallel()

	activeEvent := entity.Event{
		ID:            "event-1",
		Name:          "Midnight Concert",
		EventType:     entity.EventTypeConcert,
		TotalCapacity: 100,
		Available:     100,
		Price:         entity.Money{Amount: "50.00", Currency: "GBP"},
		Active:        true,
	}
	customer := entity.Customer{ID: "customer-1", Username: "alice"}

	t.Run("issues tickets and decrements availability", func(t *testing.T) {
		store := newFakeStore([]entity.Event{activeEvent}, []entity.Customer{customer})
		svc := newAllocator(store)

		confirmation, err := svc.Purchase(context.Background(), "event-1", "customer-1", 5)
		require.NoError(t, err)

		require.Equal(t, 5, confirmation.Count)
		require.Len(t, confirmation.TicketCodes, 5)

		assert.Equal(t, uint(95), store.events["event-1"].Available)
		require.Len(t, store.tickets, 5)
		for _, ticket := range store.tickets {
			assert.Equal(t, entity.TicketStatusSold, ticket.Status)
			assert.Equal(t, activeEvent.Price, ticket.Price)
			assert.Equal(t, "customer-1", ticket.CustomerID)
			require.NotNil(t, ticket.PurchasedAt)
			assert.Equal(t, now, *ticket.PurchasedAt)
		}
		require.Len(t, store.published, 1)
	})

	t.Run("grants all or denies all", func(t *testing.T) {
		store := newFakeStore([]entity.Event{activeEvent}, []entity.Customer{customer})
		svc := newAllocator(store)

		_, err := svc.Purchase(context.Background(), "event-1", "customer-1", 5)
		require.NoError(t, err)
		assert.Equal(t, uint(95), store.events["event-1"].Available)

		_, err = svc.Purchase(context.Background(), "event-1", "customer-1", 96)
		require.ErrorIs(t, err, entity.ErrInsufficientInventory)
		assert.Equal(t, uint(95), store.events["event-1"].Available)
		assert.Len(t, store.tickets, 5)

		_, err = svc.Purchase(context.Background(), "event-1", "customer-1", 95)
		require.NoError(t, err)
		assert.Equal(t, uint(0), store.events["event-1"].Available)

		_, err = svc.Purchase(context.Background(), "event-1", "customer-1", 1)
		require.ErrorIs(t, err, entity.ErrInsufficientInventory)
		assert.Equal(t, uint(0), store.events["event-1"].Available)
	})

	t.Run("rejects quantity outside bounds", func(t *testing.T) {
		store := newFakeStore([]entity.Event{activeEvent}, []entity.Customer{customer})
		svc := newAllocator(store)

		_, err := svc.Purchase(context.Background(), "event-1", "customer-1", 0)
		require.ErrorIs(t, err, entity.ErrInvalidQuantity)

		_, err = svc.Purchase(context.Background(), "event-1", "customer-1", -3)
		require.ErrorIs(t, err, entity.ErrInvalidQuantity)

		_, err = svc.Purchase(context.Background(), "event-1", "customer-1", 11)
		require.ErrorIs(t, err, entity.ErrInvalidQuantity)

		assert.Equal(t, uint(100), store.events["event-1"].Available)
		assert.Empty(t, store.tickets)
	})

	t.Run("honours configured maximum", func(t *testing.T) {
		store := newFakeStore([]entity.Event{activeEvent}, []entity.Customer{customer})
		svc := sale.NewService(store, store, store, store, store, clock.NewFixed(now), sale.WithMaxPerPurchase(3))

		_, err := svc.Purchase(context.Background(), "event-1", "customer-1", 4)
		require.ErrorIs(t, err, entity.ErrInvalidQuantity)

		_, err = svc.Purchase(context.Background(), "event-1", "customer-1", 3)
		require.NoError(t, err)
	})

	t.Run("rejects inactive event regardless of availability", func(t *testing.T) {
		inactive := activeEvent
		inactive.ID = "event-2"
		inactive.Active = false

		store := newFakeStore([]entity.Event{inactive}, []entity.Customer{customer})
		svc := newAllocator(store)

		_, err := svc.Purchase(context.Background(), "event-2", "customer-1", 1)
		require.ErrorIs(t, err, entity.ErrEventInactive)
		assert.Equal(t, uint(100), store.events["event-2"].Available)
		assert.Empty(t, store.tickets)
	})

	t.Run("unknown event", func(t *testing.T) {
		store := newFakeStore(nil, []entity.Customer{customer})
		svc := newAllocator(store)

		_, err := svc.Purchase(context.Background(), "missing", "customer-1", 1)
		require.ErrorIs(t, err, entity.ErrEventNotFound)
	})

	t.Run("unknown customer", func(t *testing.T) {
		store := newFakeStore([]entity.Event{activeEvent}, nil)
		svc := newAllocator(store)

		_, err := svc.Purchase(context.Background(), "event-1", "missing", 1)
		require.ErrorIs(t, err, entity.ErrCustomerNotFound)
		assert.Equal(t, uint(100), store.events["event-1"].Available)
	})

	t.Run("rolls back decrement when issuance fails", func(t *testing.T) {
		store := newFakeStore([]entity.Event{activeEvent}, []entity.Customer{customer})
		store.issueErrs = []error{errors.New("ledger write failed")}
		svc := newAllocator(store)

		_, err := svc.Purchase(context.Background(), "event-1", "customer-1", 5)
		require.Error(t, err)

		assert.Equal(t, uint(100), store.events["event-1"].Available)
		assert.Empty(t, store.tickets)
		assert.Empty(t, store.published)
	})

	t.Run("retries once on code collision", func(t *testing.T) {
		store := newFakeStore([]entity.Event{activeEvent}, []entity.Customer{customer})
		store.issueErrs = []error{entity.ErrDuplicateCode}
		svc := newAllocator(store)

		confirmation, err := svc.Purchase(context.Background(), "event-1", "customer-1", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, confirmation.Count)
		assert.Equal(t, uint(98), store.events["event-1"].Available)
	})

	t.Run("surfaces second collision", func(t *testing.T) {
		store := newFakeStore([]entity.Event{activeEvent}, []entity.Customer{customer})
		store.issueErrs = []error{entity.ErrDuplicateCode, entity.ErrDuplicateCode}
		svc := newAllocator(store)

		_, err := svc.Purchase(context.Background(), "event-1", "customer-1", 2)
		require.ErrorIs(t, err, entity.ErrDuplicateCode)
		assert.Equal(t, uint(100), store.events["event-1"].Available)
		assert.Empty(t, store.tickets)
	})

	t.Run("rolls back when outbox publish fails", func(t *testing.T) {
		store := newFakeStore([]entity.Event{activeEvent}, []entity.Customer{customer})
		store.publishErr = errors.New("outbox unavailable")
		svc := newAllocator(store)

		_, err := svc.Purchase(context.Background(), "event-1", "customer-1", 5)
		require.Error(t, err)

		assert.Equal(t, uint(100), store.events["event-1"].Available)
		assert.Empty(t, store.tickets)
	})
}

func TestService_Purchase_NoOversellUnderContention(t *testing.T) {
	t.Parallel()

	const (
		available = 10
		excess    = 7
	)

	ev := entity.Event{
		ID:            "event-1",
		Name:          "Final Night",
		TotalCapacity: available,
		Available:     available,
		Price:         entity.Money{Amount: "25.00", Currency: "GBP"},
		Active:        true,
	}
	store := newFakeStore([]entity.Event{ev}, []entity.Customer{{ID: "customer-1"}})
	svc := newAllocator(store)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
	)

	for i := 0; i < available+excess; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := svc.Purchase(context.Background(), "event-1", "customer-1", 1)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, entity.ErrInsufficientInventory):
				insufficient++
			default:
				assert.Fail(t, "unexpected error", err.Error())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, available, successes)
	assert.Equal(t, excess, insufficient)
	assert.Equal(t, uint(0), store.events["event-1"].Available)
	require.Len(t, store.tickets, available)

	// available == total_capacity - sold tickets, and every code is unique.
	codes := make(map[string]struct{}, len(store.tickets))
	for _, ticket := range store.tickets {
		codes[ticket.Code] = struct{}{}
	}
	assert.Len(t, codes, available)
}

func TestService_Availability(t *testing.T) {
	t.Parallel()

	ev := entity.Event{
		ID:            "event-1",
		TotalCapacity: 100,
		Available:     40,
		Active:        true,
	}
	store := newFakeStore([]entity.Event{ev}, nil)
	svc := newAllocator(store)

	first, err := svc.Availability(context.Background(), "event-1")
	require.NoError(t, err)
	assert.Equal(t, sale.Availability{Available: 40, TotalCapacity: 100}, first)

	second, err := svc.Availability(context.Background(), "event-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = svc.Availability(context.Background(), "missing")
	require.ErrorIs(t, err, entity.ErrEventNotFound)
}

func TestService_TicketsForCustomer(t *testing.T) {
	t.Parallel()

	earlier := now.Add(-time.Hour)
	store := newFakeStore(nil, nil)
	store.tickets = []entity.Ticket{
		{Code: "TKT-B", CustomerID: "customer-1", PurchasedAt: &earlier},
		{Code: "TKT-A", CustomerID: "customer-1", PurchasedAt: &now},
		{Code: "TKT-C", CustomerID: "customer-2", PurchasedAt: &now},
	}
	svc := newAllocator(store)

	tickets, err := svc.TicketsForCustomer(context.Background(), "customer-1")
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "TKT-A", tickets[0].Code)
	assert.Equal(t, "TKT-B", tickets[1].Code)
}

func newAllocator(store *fakeStore) *sale.Service {
	return sale.NewService(store, store, store, store, store, clock.NewFixed(now))
}

// fakeStore backs all of the allocator's dependencies in memory. InTx
// serialises units of work and restores a snapshot on failure, standing
// in for the row lock and rollback the Postgres stores provide.
type fakeStore struct {
	mu        sync.Mutex
	events    map[string]entity.Event
	customers map[string]entity.Customer
	tickets   []entity.Ticket
	published []any

	issueErrs  []error
	publishErr error
}

func newFakeStore(events []entity.Event, customers []entity.Customer) *fakeStore {
	s := &fakeStore{
		events:    make(map[string]entity.Event),
		customers: make(map[string]entity.Customer),
	}
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
	for _, c := range customers {
		s.customers[c.ID] = c
	}

	return s
}

func (s *fakeStore) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshotEvents := make(map[string]entity.Event, len(s.events))
	for id, ev := range s.events {
		snapshotEvents[id] = ev
	}
	snapshotTickets := append([]entity.Ticket(nil), s.tickets...)
	snapshotPublished := append([]any(nil), s.published...)

	if err := fn(nil); err != nil {
		s.events = snapshotEvents
		s.tickets = snapshotTickets
		s.published = snapshotPublished
		return err
	}

	return nil
}

func (s *fakeStore) GetForUpdate(_ context.Context, _ *sql.Tx, eventID string) (entity.Event, error) {
	ev, ok := s.events[eventID]
	if !ok {
		return entity.Event{}, entity.ErrEventNotFound
	}

	return ev, nil
}

func (s *fakeStore) Decrement(_ context.Context, _ *sql.Tx, eventID string, quantity uint) error {
	ev, ok := s.events[eventID]
	if !ok {
		return entity.ErrEventNotFound
	}
	if ev.Available < quantity {
		return entity.ErrInsufficientInventory
	}

	ev.Available -= quantity
	s.events[eventID] = ev

	return nil
}

func (s *fakeStore) Availability(_ context.Context, eventID string) (uint, uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID]
	if !ok {
		return 0, 0, entity.ErrEventNotFound
	}

	return ev.Available, ev.TotalCapacity, nil
}

func (s *fakeStore) IssueBatch(_ context.Context, _ *sql.Tx, tickets []entity.Ticket) error {
	if len(s.issueErrs) > 0 {
		err := s.issueErrs[0]
		s.issueErrs = s.issueErrs[1:]
		if err != nil {
			return err
		}
	}

	s.tickets = append(s.tickets, tickets...)

	return nil
}

func (s *fakeStore) ListForCustomer(_ context.Context, customerID string) ([]entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tickets []entity.Ticket
	for _, t := range s.tickets {
		if t.CustomerID == customerID {
			tickets = append(tickets, t)
		}
	}

	sort.Slice(tickets, func(i, j int) bool {
		a, b := tickets[i], tickets[j]
		if !a.PurchasedAt.Equal(*b.PurchasedAt) {
			return a.PurchasedAt.After(*b.PurchasedAt)
		}
		return a.Code < b.Code
	})

	return tickets, nil
}

func (s *fakeStore) Get(_ context.Context, customerID string) (entity.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok {
		return entity.Customer{}, entity.ErrCustomerNotFound
	}

	return c, nil
}

func (s *fakeStore) PublishInTx(_ context.Context, e any, _ *sql.Tx) error {
	if s.publishErr != nil {
		return s.publishErr
	}

	s.published = append(s.published, e)

	return nil
}
