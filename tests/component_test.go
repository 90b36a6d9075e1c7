package tests_test

import (
	"net/http"
	"testing"
	"time"

	"boxoffice/entity"
	"boxoffice/sale"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponent(t *testing.T) {
	rdb := setupRedis(t)
	db := setupDB(t)

	startService(t, rdb, db)

	var customer entity.Customer
	status := postJSON(t, "/customers", map[string]any{
		"username":   "buyer-" + time.Now().Format("150405.000000000"),
		"email":      "buyer@example.com",
		"birth_date": "1990-05-01T00:00:00Z",
	}, &customer)
	require.Equal(t, http.StatusCreated, status)

	var ev entity.Event
	status = postJSON(t, "/events", map[string]any{
		"name":           "Component Test Gig",
		"event_type":     "concert",
		"starts_at":      time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"location":       "Test Arena",
		"total_capacity": 10,
		"price":          map[string]string{"amount": "42.00", "currency": "GBP"},
	}, &ev)
	require.Equal(t, http.StatusCreated, status)

	t.Run("availability reflects capacity", func(t *testing.T) {
		var availability sale.Availability
		status := getJSON(t, "/events/"+ev.ID+"/availability", &availability)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, sale.Availability{Available: 10, TotalCapacity: 10}, availability)
	})

	t.Run("purchase issues tickets and decrements availability", func(t *testing.T) {
		var confirmation sale.Confirmation
		status := postJSON(t, "/purchase", map[string]any{
			"event_id":    ev.ID,
			"customer_id": customer.ID,
			"quantity":    3,
		}, &confirmation)
		require.Equal(t, http.StatusCreated, status)
		require.Equal(t, 3, confirmation.Count)
		require.Len(t, confirmation.TicketCodes, 3)

		var availability sale.Availability
		status = getJSON(t, "/events/"+ev.ID+"/availability", &availability)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, uint(7), availability.Available)

		var tickets []entity.Ticket
		status = getJSON(t, "/tickets?customer_id="+customer.ID, &tickets)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, tickets, 3)
		for _, ticket := range tickets {
			assert.Equal(t, entity.TicketStatusSold, ticket.Status)
			assert.Equal(t, ev.ID, ticket.EventID)
		}
	})

	t.Run("oversized purchase is denied entirely", func(t *testing.T) {
		status := postJSON(t, "/purchase", map[string]any{
			"event_id":    ev.ID,
			"customer_id": customer.ID,
			"quantity":    8,
		}, nil)
		require.Equal(t, http.StatusConflict, status)

		var availability sale.Availability
		status = getJSON(t, "/events/"+ev.ID+"/availability", &availability)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, uint(7), availability.Available)
	})

	t.Run("confirmation notification is delivered", func(t *testing.T) {
		var notifications []entity.Notification
		require.EventuallyWithT(
			t,
			func(collectT *assert.CollectT) {
				status := getJSON(t, "/notifications?customer_id="+customer.ID, &notifications)
				if !assert.Equal(collectT, http.StatusOK, status) {
					return
				}
				assert.NotEmpty(collectT, notifications, "no notifications delivered yet")
			},
			10*time.Second,
			100*time.Millisecond,
		)

		notification := notifications[0]
		assert.Equal(t, entity.NotificationKindPurchase, notification.Kind)
		assert.False(t, notification.Read)

		status := patch(t, "/notifications/"+notification.ID+"/read?customer_id="+customer.ID)
		require.Equal(t, http.StatusNoContent, status)

		status = getJSON(t, "/notifications?customer_id="+customer.ID, &notifications)
		require.Equal(t, http.StatusOK, status)
		require.NotEmpty(t, notifications)
		assert.True(t, notifications[0].Read)
	})

	t.Run("invalid quantity rejected", func(t *testing.T) {
		status := postJSON(t, "/purchase", map[string]any{
			"event_id":    ev.ID,
			"customer_id": customer.ID,
			"quantity":    0,
		}, nil)
		require.Equal(t, http.StatusBadRequest, status)
	})
}
