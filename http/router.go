package http

import (
	"context"
	"net/http"

	"boxoffice/entity"
	"boxoffice/sale"

	commonHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/labstack/echo/v4"
)

var ErrServerClosed = http.ErrServerClosed

type Allocator interface {
	Purchase(ctx context.Context, eventID, customerID string, quantity int) (sale.Confirmation, error)
	Availability(ctx context.Context, eventID string) (sale.Availability, error)
	TicketsForCustomer(ctx context.Context, customerID string) ([]entity.Ticket, error)
}

type EventStore interface {
	Add(ctx context.Context, ev entity.Event) error
	ListActive(ctx context.Context) ([]entity.Event, error)
}

type CustomerStore interface {
	Add(ctx context.Context, c entity.Customer) error
}

type NotificationStore interface {
	ListForCustomer(ctx context.Context, customerID string) ([]entity.Notification, error)
	MarkRead(ctx context.Context, notificationID, customerID string) error
}

func NewRouter(allocator Allocator, events EventStore, customers CustomerStore, notifications NotificationStore) *echo.Echo {
	server := commonHTTP.NewEcho()

	server.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	h := handler{
		allocator:     allocator,
		events:        events,
		customers:     customers,
		notifications: notifications,
	}

	server.POST("/purchase", h.Purchase)
	server.GET("/events", h.ListEvents)
	server.POST("/events", h.CreateEvent)
	server.GET("/events/:event_id/availability", h.GetAvailability)
	server.GET("/tickets", h.ListTickets)
	server.POST("/customers", h.CreateCustomer)
	server.GET("/notifications", h.ListNotifications)
	server.PATCH("/notifications/:notification_id/read", h.MarkNotificationRead)

	return server
}
