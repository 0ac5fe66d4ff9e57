package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

var (
	// ErrCustomerNotFound is returned when the tariff service does not know the customer.
	ErrCustomerNotFound = errors.New("tariff client: customer not found")
	// ErrTariffUnavailable covers transport failures and unexpected tariff service responses.
	ErrTariffUnavailable = errors.New("tariff client: tariff service unavailable")
)

type authKey struct{}

// WithAuthorization attaches the caller's Authorization header so it is forwarded upstream.
func WithAuthorization(ctx context.Context, header string) context.Context {
	return context.WithValue(ctx, authKey{}, header)
}

func authorizationFrom(ctx context.Context) string {
	header, _ := ctx.Value(authKey{}).(string)
	return header
}

// ResolvedRate is the subset of the resolution response billing needs.
type ResolvedRate struct {
	CustomerID string          `json:"customer_id"`
	Rate       decimal.Decimal `json:"rate"`
	Source     string          `json:"source"`
	SourceKey  string          `json:"source_key"`
}

// TariffClient calls tariff-service.
type TariffClient struct {
	base *BaseClient
}

// NewTariffClient returns client instance.
func NewTariffClient(baseURL string, httpClient HTTPDoer) *TariffClient {
	return &TariffClient{base: NewBaseClient(baseURL, httpClient)}
}

// Resolve fetches the rate currently in effect for customerID.
func (c *TariffClient) Resolve(ctx context.Context, customerID string) (*ResolvedRate, error) {
	headers := map[string]string{"Authorization": authorizationFrom(ctx)}
	status, body, err := c.base.Do(ctx, http.MethodGet, "/tariff/resolve/"+url.PathEscape(customerID), nil, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTariffUnavailable, err)
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, customerID)
	default:
		return nil, fmt.Errorf("%w: status %d: %s", ErrTariffUnavailable, status, errorMessage(body))
	}

	var resolved ResolvedRate
	if err := json.Unmarshal(body, &resolved); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTariffUnavailable, err)
	}
	if !resolved.Rate.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive rate %s", ErrTariffUnavailable, resolved.Rate)
	}
	return &resolved, nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return http.StatusText(http.StatusBadGateway)
}
