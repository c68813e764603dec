package handlers

import (
	"context"
	"net/http"
	"sort"

	api "blocklytics/portal/pkg/api/coreapi"
	"blocklytics/portal/pkg/middleware"
	"blocklytics/portal/pkg/models"
)

func ordersCacheKey(userID string) string {
	return "orders:" + userID
}

// ListOrders returns the user's order history. Results are cached briefly so
// the order page survives rapid navigation without hammering the upstream;
// ?refresh=true bypasses the cache after a payment round trip.
func ListOrders(c middleware.Context) {
	userID := sessionUserID(c)
	token := sessionToken(c)

	if c.Query("refresh") == "true" {
		orderCache.Delete(ordersCacheKey(userID))
	}

	v, ok, err := orderCache.Get(c.Request.Context(), ordersCacheKey(userID), func(ctx context.Context, _ string) (interface{}, bool, error) {
		orders, err := client.ListOrders(ctx, token)
		if err != nil {
			return nil, false, err
		}
		sort.Slice(orders, func(i, j int) bool {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		})
		return orders, true, nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, api.ListOrdersResponse{Orders: []models.Order{}})
		return
	}

	orders, _ := v.([]models.Order)
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, api.ListOrdersResponse{Orders: orders})
}

// PaymentSuccess is the gateway's landing callback after a completed payment.
// It finalizes the order upstream; the key is the opaque order key the
// gateway was handed at checkout.
func PaymentSuccess(c middleware.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "key is required"})
		return
	}

	if err := client.ConfirmPayment(c.Request.Context(), key); err != nil {
		respondError(c, err)
		return
	}

	if metrics != nil {
		metrics.OrdersSubmitted.WithLabelValues("paid").Inc()
	}
	logger.Info("Payment confirmed")
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Payment confirmed"})
}

// PaymentTimeout clears the invoice number of an order whose payment window
// expired, so the upstream can void the reserved invoice.
func PaymentTimeout(c middleware.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "key is required"})
		return
	}

	if err := client.ResetInvoice(c.Request.Context(), key); err != nil {
		respondError(c, err)
		return
	}

	if metrics != nil {
		metrics.OrdersSubmitted.WithLabelValues("timeout").Inc()
	}
	logger.Info("Order payment timed out, invoice reset")
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Invoice reset"})
}
