package entity

import "time"

const (
	TicketStatusAvailable = "available"
	TicketStatusReserved  = "reserved"
	TicketStatusSold      = "sold"
	TicketStatusCancelled = "cancelled"
)

const (
	EventTypeConcert    = "concert"
	EventTypeTheater    = "theater"
	EventTypeSports     = "sports"
	EventTypeConference = "conference"
	EventTypeOther      = "other"
)

const (
	NotificationKindPurchase     = "purchase"
	NotificationKindCancellation = "cancellation"
	NotificationKindEventUpdate  = "event_update"
	NotificationKindSystem       = "system"
)

type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type Event struct {
	ID            string    `json:"event_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	EventType     string    `json:"event_type"`
	StartsAt      time.Time `json:"starts_at"`
	Location      string    `json:"location"`
	TotalCapacity uint      `json:"total_capacity"`
	Available     uint      `json:"available"`
	Price         Money     `json:"price"`
	Active        bool      `json:"active"`
}

type Ticket struct {
	ID          string     `json:"ticket_id"`
	Code        string     `json:"ticket_code"`
	EventID     string     `json:"event_id"`
	CustomerID  string     `json:"customer_id"`
	Status      string     `json:"status"`
	Price       Money      `json:"price"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
}

type Customer struct {
	ID        string    `json:"customer_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	BirthDate time.Time `json:"birth_date"`
}

type Notification struct {
	ID         string    `json:"notification_id"`
	CustomerID string    `json:"customer_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Kind       string    `json:"kind"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}
