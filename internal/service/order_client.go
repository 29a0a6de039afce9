package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"labflow/pkg/apperr"
	"labflow/pkg/circuitbreaker"
)

// OrderClient verifies order references against the external order
// service before a job is created. The breaker keeps a dead upstream
// from stalling every job creation.
type OrderClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewOrderClient(baseURL string, logger *zap.Logger) *OrderClient {
	return &OrderClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

// Check confirms the order exists. With no base URL configured the check
// is skipped (standalone deployments own their order data).
func (c *OrderClient) Check(ctx context.Context, orderID int64) error {
	if c.baseURL == "" {
		return nil
	}

	var notFound bool
	err := c.breaker.Execute(func() error {
		url := fmt.Sprintf("%s/orders/%d", c.baseURL, orderID)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			// a definite answer, not an upstream failure
			notFound = true
			return nil
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		default:
			return fmt.Errorf("order service returned status %d", resp.StatusCode)
		}
	})
	if err != nil {
		c.logger.Error("Order service check failed",
			zap.Error(err),
			zap.Int64("order_id", orderID),
		)
		return apperr.Dependency("order service", err)
	}
	if notFound {
		return apperr.NotFound("order", strconv.FormatInt(orderID, 10))
	}
	return nil
}
