package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scoopworks/creamery-backend/pkg/config"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
	"github.com/scoopworks/creamery-backend/pkg/logger"
)

var (
	errCredentialsRequired = errors.New("paypal client id and secret are required")
	errBaseURLRequired     = errors.New("paypal base url is required")
)

// Client wraps the PayPal Orders REST surface the core consumes: create a
// remote order and capture it. Capture is safe to call more than once.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	currency   string
	logger     *logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// RemoteOrder is the result of creating a gateway order.
type RemoteOrder struct {
	RemoteOrderID string
	ApprovalURL   string
}

// CaptureResult is the outcome of capturing a gateway order.
type CaptureResult struct {
	RemoteTransactionID string
	Status              string
	AlreadyCaptured     bool
}

// NewClient validates the gateway credentials and builds the adapter.
func NewClient(cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errCredentialsRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "USD"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		clientID:   cfg.ClientID,
		secret:     cfg.ClientSecret,
		currency:   currency,
		logger:     logg,
	}, nil
}

// CreateRemoteOrder registers an order with the gateway and returns the
// approval URL the client must visit before checkout.
func (c *Client) CreateRemoteOrder(ctx context.Context, amountCents int, description string) (*RemoteOrder, error) {
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"amount": map[string]string{
					"currency_code": c.currency,
					"value":         formatAmount(amountCents),
				},
				"description": description,
			},
		},
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", payload, &resp); err != nil {
		return nil, err
	}

	order := &RemoteOrder{RemoteOrderID: resp.ID}
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			order.ApprovalURL = link.Href
			break
		}
	}
	return order, nil
}

// CaptureRemoteOrder captures the payment for a previously approved
// gateway order. A repeat capture of the same order is reported as
// success with AlreadyCaptured set, so client retries are harmless.
func (c *Client) CaptureRemoteOrder(ctx context.Context, remoteOrderID string) (*CaptureResult, error) {
	if strings.TrimSpace(remoteOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote order id is required")
	}

	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(remoteOrderID))

	var resp struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}

	err := c.doJSON(ctx, http.MethodPost, path, map[string]any{}, &resp)
	if err != nil {
		var gwErr *gatewayError
		if errors.As(err, &gwErr) && gwErr.issue == "ORDER_ALREADY_CAPTURED" {
			return c.lookupCapture(ctx, remoteOrderID)
		}
		return nil, err
	}

	result := &CaptureResult{Status: resp.Status}
	for _, unit := range resp.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			result.RemoteTransactionID = capture.ID
			break
		}
	}
	return result, nil
}

// lookupCapture reloads an already-captured order so a duplicate capture
// call still returns the original transaction id.
func (c *Client) lookupCapture(ctx context.Context, remoteOrderID string) (*CaptureResult, error) {
	path := fmt.Sprintf("/v2/checkout/orders/%s", url.PathEscape(remoteOrderID))

	var resp struct {
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	result := &CaptureResult{Status: resp.Status, AlreadyCaptured: true}
	for _, unit := range resp.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			result.RemoteTransactionID = capture.ID
			break
		}
	}
	return result, nil
}

type gatewayError struct {
	status int
	issue  string
	body   string
}

func (e *gatewayError) Error() string {
	return fmt.Sprintf("paypal: status %d issue %s", e.status, e.issue)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, dest any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway payload")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "call payment gateway")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "read gateway response")
	}

	if resp.StatusCode >= 400 {
		gwErr := &gatewayError{status: resp.StatusCode, issue: extractIssue(raw), body: string(raw)}
		if c.logger != nil {
			ctx := c.logger.WithFields(ctx, map[string]any{
				"gateway_status": resp.StatusCode,
				"gateway_issue":  gwErr.issue,
			})
			c.logger.Warn(ctx, "paypal.request_failed")
		}
		return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, gwErr, "payment gateway rejected request").
			WithDetails(map[string]any{"status": resp.StatusCode, "issue": gwErr.issue})
	}

	if dest != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, dest); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "decode gateway response")
		}
	}
	return nil
}

// accessToken returns a cached OAuth token, refreshing via the
// client-credentials grant when expired.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build token request")
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "fetch gateway token")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodePaymentGateway, "gateway token request failed").
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "decode gateway token")
	}

	c.token = body.AccessToken
	// refresh one minute early
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func extractIssue(raw []byte) string {
	var body struct {
		Details []struct {
			Issue string `json:"issue"`
		} `json:"details"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if len(body.Details) > 0 {
		return body.Details[0].Issue
	}
	return body.Name
}

func formatAmount(cents int) string {
	return decimal.New(int64(cents), -2).StringFixed(2)
}
