package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/girishhardia/Jweluxe/internal/models"
)

// Intent statuses as reported by the processor.
const (
	IntentStatusSucceeded  = "succeeded"
	IntentStatusCanceled   = "canceled"
	IntentStatusProcessing = "processing"
)

// PaymentIntent is the processor's handle for an in-progress charge.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Succeeded reports whether the intent resolved to a completed charge.
func (pi *PaymentIntent) Succeeded() bool {
	return pi.Status == IntentStatusSucceeded
}

// Terminal reports whether the intent can no longer change outcome.
func (pi *PaymentIntent) Terminal() bool {
	return pi.Status == IntentStatusSucceeded || pi.Status == IntentStatusCanceled
}

// Client calls the external payment processor's intent API. The
// processor is an untrusted, possibly-delayed oracle; callers must
// treat timeouts as unknown outcome, never as success.
type Client interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency string) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
}

type clientImpl struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a processor client with a bounded request timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) Client {
	return &clientImpl{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// CreatePaymentIntent asks the processor to open a charge attempt for
// the given amount in minor units.
func (c *clientImpl) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

// GetPaymentIntent fetches the current state of an intent.
func (c *clientImpl) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/payment_intents/"+intentID, nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req)
}

func (c *clientImpl) do(req *http.Request) (*PaymentIntent, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPaymentProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", models.ErrPaymentProvider, resp.StatusCode, string(b))
	}

	var intent PaymentIntent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", models.ErrPaymentProvider, err)
	}

	return &intent, nil
}
