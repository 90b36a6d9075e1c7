package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"boxoffice/entity"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type handler struct {
	allocator     Allocator
	events        EventStore
	customers     CustomerStore
	notifications NotificationStore
}

// Quantity is signed so out-of-range values survive binding and get
// classified by the allocator's bound check instead of failing as a
// parse error.
type purchaseRequest struct {
	EventID    string `json:"event_id"`
	CustomerID string `json:"customer_id"`
	Quantity   int    `json:"quantity"`
}

func (h handler) Purchase(c echo.Context) error {
	var request purchaseRequest
	if err := c.Bind(&request); err != nil {
		return &echo.HTTPError{
			Code:     http.StatusBadRequest,
			Message:  "failed to parse request",
			Internal: fmt.Errorf("failed to bind request: %w", err),
		}
	}

	confirmation, err := h.allocator.Purchase(c.Request().Context(), request.EventID, request.CustomerID, request.Quantity)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusCreated, confirmation)
}

func (h handler) GetAvailability(c echo.Context) error {
	availability, err := h.allocator.Availability(c.Request().Context(), c.Param("event_id"))
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, availability)
}

func (h handler) ListTickets(c echo.Context) error {
	customerID := c.QueryParam("customer_id")
	if customerID == "" {
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "customer_id is required",
		}
	}

	tickets, err := h.allocator.TicketsForCustomer(c.Request().Context(), customerID)
	if err != nil {
		return domainError(err)
	}
	if tickets == nil {
		tickets = []entity.Ticket{}
	}

	return c.JSON(http.StatusOK, tickets)
}

type createEventRequest struct {
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	EventType     string       `json:"event_type"`
	StartsAt      time.Time    `json:"starts_at"`
	Location      string       `json:"location"`
	TotalCapacity uint         `json:"total_capacity"`
	Price         entity.Money `json:"price"`
}

func (h handler) CreateEvent(c echo.Context) error {
	var request createEventRequest
	if err := c.Bind(&request); err != nil {
		return &echo.HTTPError{
			Code:     http.StatusBadRequest,
			Message:  "failed to parse request",
			Internal: fmt.Errorf("failed to bind request: %w", err),
		}
	}

	ev := entity.Event{
		ID:            uuid.NewString(),
		Name:          request.Name,
		Description:   request.Description,
		EventType:     request.EventType,
		StartsAt:      request.StartsAt,
		Location:      request.Location,
		TotalCapacity: request.TotalCapacity,
		Available:     request.TotalCapacity,
		Price:         request.Price,
		Active:        true,
	}
	if ev.EventType == "" {
		ev.EventType = entity.EventTypeOther
	}

	if err := h.events.Add(c.Request().Context(), ev); err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusCreated, ev)
}

func (h handler) ListEvents(c echo.Context) error {
	events, err := h.events.ListActive(c.Request().Context())
	if err != nil {
		return domainError(err)
	}
	if events == nil {
		events = []entity.Event{}
	}

	return c.JSON(http.StatusOK, events)
}

type createCustomerRequest struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	BirthDate time.Time `json:"birth_date"`
}

func (h handler) CreateCustomer(c echo.Context) error {
	var request createCustomerRequest
	if err := c.Bind(&request); err != nil {
		return &echo.HTTPError{
			Code:     http.StatusBadRequest,
			Message:  "failed to parse request",
			Internal: fmt.Errorf("failed to bind request: %w", err),
		}
	}

	customer := entity.Customer{
		ID:        uuid.NewString(),
		Username:  request.Username,
		Email:     request.Email,
		Phone:     request.Phone,
		BirthDate: request.BirthDate,
	}

	if err := h.customers.Add(c.Request().Context(), customer); err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusCreated, customer)
}

func (h handler) ListNotifications(c echo.Context) error {
	customerID := c.QueryParam("customer_id")
	if customerID == "" {
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "customer_id is required",
		}
	}

	notifications, err := h.notifications.ListForCustomer(c.Request().Context(), customerID)
	if err != nil {
		return domainError(err)
	}
	if notifications == nil {
		notifications = []entity.Notification{}
	}

	return c.JSON(http.StatusOK, notifications)
}

func (h handler) MarkNotificationRead(c echo.Context) error {
	customerID := c.QueryParam("customer_id")
	if customerID == "" {
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "customer_id is required",
		}
	}

	err := h.notifications.MarkRead(c.Request().Context(), c.Param("notification_id"), customerID)
	if err != nil {
		return domainError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func domainError(err error) error {
	var code int
	switch {
	case errors.Is(err, entity.ErrInvalidQuantity):
		code = http.StatusBadRequest
	case errors.Is(err, entity.ErrEventNotFound),
		errors.Is(err, entity.ErrCustomerNotFound),
		errors.Is(err, entity.ErrNotificationNotFound):
		code = http.StatusNotFound
	case errors.Is(err, entity.ErrEventInactive),
		errors.Is(err, entity.ErrInsufficientInventory):
		code = http.StatusConflict
	case errors.Is(err, entity.ErrLockTimeout):
		code = http.StatusServiceUnavailable
	default:
		return &echo.HTTPError{
			Code:     http.StatusInternalServerError,
			Message:  http.StatusText(http.StatusInternalServerError),
			Internal: err,
		}
	}

	return &echo.HTTPError{
		Code:     code,
		Message:  err.Error(),
		Internal: err,
	}
}
