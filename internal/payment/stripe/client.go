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

	checkoutdomain "github.com/smallbiznis/giftpact/internal/checkout/domain"
	"github.com/smallbiznis/giftpact/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const apiBaseURL = "https://api.stripe.com"

type ClientParams struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// Client talks to the Stripe Checkout API over its form-encoded surface.
type Client struct {
	secretKey  string
	successURL string
	cancelURL  string
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(p ClientParams) checkoutdomain.PaymentProvider {
	return &Client{
		secretKey:  p.Cfg.StripeSecretKey,
		successURL: p.Cfg.CheckoutSuccessURL,
		cancelURL:  p.Cfg.CheckoutCancelURL,
		baseURL:    apiBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        p.Log.Named("payment.stripe"),
	}
}

type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req checkoutdomain.CreateSessionRequest) (*checkoutdomain.ProviderSession, error) {
	if c.secretKey == "" {
		return nil, checkoutdomain.ErrPaymentNotConfigured
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.successURL+"?session_id={CHECKOUT_SESSION_ID}")
	form.Set("cancel_url", c.cancelURL)
	form.Set("client_reference_id", req.UserID)
	form.Set("metadata[user_id]", req.UserID)
	form.Set("metadata[transaction_ids]", checkoutdomain.JoinPurchaseIDs(req.PurchaseIDs))

	for i, item := range req.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
		form.Set(prefix+"[price_data][currency]", strings.ToLower(item.Currency))
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		if item.Description != "" {
			form.Set(prefix+"[price_data][product_data][description]", item.Description)
		}
		if item.ImageURL != "" {
			form.Set(prefix+"[price_data][product_data][images][0]", item.ImageURL)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, checkoutdomain.ErrPaymentUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(body, &apiErr)
		c.log.Error("checkout session creation rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("error_type", apiErr.Error.Type),
			zap.String("error_code", apiErr.Error.Code),
		)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, checkoutdomain.ErrPaymentUnavailable
		}
		return nil, checkoutdomain.ErrSessionCreationFailed
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, err
	}
	if session.ID == "" || session.URL == "" {
		return nil, checkoutdomain.ErrSessionCreationFailed
	}

	return &checkoutdomain.ProviderSession{ID: session.ID, URL: session.URL}, nil
}
