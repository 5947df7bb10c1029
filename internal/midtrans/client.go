// Package midtrans is the payment gateway adapter for the Midtrans Snap API.
// It translates bookings into Snap transaction requests and authenticates the
// gateway's asynchronous notifications.
package midtrans

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kashiralabs/fieldbook/pkg/booking"
)

const (
	sandboxBaseURL    = "https://app.sandbox.midtrans.com/snap/v1/transactions"
	productionBaseURL = "https://app.midtrans.com/snap/v1/transactions"
	adminFeeItemName  = "Biaya Admin"
	defaultTimeout    = 15 * time.Second
)

// Config holds the gateway credentials and mode. It is injected explicitly;
// nothing in this package reads ambient state.
type Config struct {
	ServerKey  string
	Production bool
	// BaseURL overrides the Snap endpoint; used by tests.
	BaseURL string
	Timeout time.Duration
}

// Client calls the Snap API. It implements booking.PaymentGateway and
// booking.NotificationVerifier.
type Client struct {
	baseURL    string
	serverKey  string
	httpClient *http.Client
}

// NewClient wires a Client from configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ServerKey == "" {
		return nil, errors.New("midtrans: server key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sandboxBaseURL
		if cfg.Production {
			baseURL = productionBaseURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   baseURL,
		serverKey: cfg.ServerKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type itemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

type customerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type snapRequest struct {
	TransactionDetails transactionDetails `json:"transaction_details"`
	ItemDetails        []itemDetail       `json:"item_details"`
	CustomerDetails    customerDetails    `json:"customer_details"`
}

type snapResponse struct {
	Token         string   `json:"token"`
	ErrorMessages []string `json:"error_messages"`
}

// CreateTransaction creates a Snap transaction and returns its session token.
// The token is what the client-side payment widget consumes.
func (client *Client) CreateTransaction(ctx context.Context, transaction booking.GatewayTransaction) (string, error) {
	payload := snapRequest{
		TransactionDetails: transactionDetails{
			OrderID:     transaction.OrderNumber,
			GrossAmount: int64(transaction.GrossAmount),
		},
		ItemDetails: []itemDetail{
			{
				ID:       "FIELD_" + transaction.BookingID,
				Price:    int64(transaction.Subtotal),
				Quantity: 1,
				Name:     sanitizeText(transaction.ItemLabel, maxItemNameLength),
			},
			{
				ID:       "ADMIN_" + transaction.BookingID,
				Price:    int64(transaction.AdminFee),
				Quantity: 1,
				Name:     adminFeeItemName,
			},
		},
		CustomerDetails: customerDetails{
			FirstName: sanitizeText(transaction.CustomerName, maxItemNameLength),
			Email:     transaction.CustomerEmail,
			Phone:     cleanPhoneNumber(transaction.CustomerPhone),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", booking.ErrGatewayProtocol, err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", booking.ErrGatewayProtocol, err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(client.serverKey+":")))

	response, err := client.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("%w: %v", booking.ErrGatewayUnavailable, err)
	}
	defer func() { _ = response.Body.Close() }()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", booking.ErrGatewayUnavailable, err)
	}

	if response.StatusCode != http.StatusCreated {
		message := "unknown error"
		var parsed snapResponse
		if unmarshalErr := json.Unmarshal(responseBody, &parsed); unmarshalErr == nil && len(parsed.ErrorMessages) > 0 {
			message = parsed.ErrorMessages[0]
		}
		return "", fmt.Errorf("%w: HTTP %d: %s", booking.ErrGatewayRejected, response.StatusCode, message)
	}

	var parsed snapResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", booking.ErrGatewayProtocol, err)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("%w: token missing from response", booking.ErrGatewayProtocol)
	}
	return parsed.Token, nil
}
