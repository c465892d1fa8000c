package pinetwork

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/go-resty/resty/v2"

	"github.com/pimartlabs/pimart-backend/pkg/config"
	apperrors "github.com/pimartlabs/pimart-backend/pkg/errors"
)

// Client talks to the custodial payment platform's server-side API.
type Client struct {
	http    *resty.Client
	horizon *resty.Client
}

// New builds a platform client from configuration.
func New(cfg config.PlatformConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("platform base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("platform API key is required")
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Key "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	horizonURL := cfg.HorizonBaseURL
	horizonClient := resty.New().SetTimeout(cfg.Timeout)
	if horizonURL != "" {
		horizonClient = horizonClient.SetBaseURL(horizonURL)
	}

	return &Client{http: httpClient, horizon: horizonClient}, nil
}

// GetPayment fetches the platform's current view of a payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*PaymentDTO, error) {
	var out PaymentDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/payments/" + paymentID)
	if err := c.checkResponse(resp, err, "fetching payment "+paymentID); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApprovePayment tells the platform the app accepts the payment.
func (c *Client) ApprovePayment(ctx context.Context, paymentID string) (*PaymentDTO, error) {
	var out PaymentDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Post("/payments/" + paymentID + "/approve")
	if err := c.checkResponse(resp, err, "approving payment "+paymentID); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompletePayment acknowledges the on-chain transaction for a payment.
func (c *Client) CompletePayment(ctx context.Context, paymentID, txID string) (*PaymentDTO, error) {
	var out PaymentDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"txid": txID}).
		SetResult(&out).
		Post("/payments/" + paymentID + "/complete")
	if err := c.checkResponse(resp, err, "completing payment "+paymentID); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelPayment voids a payment on the platform side.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*PaymentDTO, error) {
	var out PaymentDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Post("/payments/" + paymentID + "/cancel")
	if err := c.checkResponse(resp, err, "cancelling payment "+paymentID); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePayment opens an app-to-user payment on the platform.
func (c *Client) CreatePayment(ctx context.Context, input CreatePaymentInput) (*PaymentDTO, error) {
	var out PaymentDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"payment": input}).
		SetResult(&out).
		Post("/payments")
	if err := c.checkResponse(resp, err, "creating payment"); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitPayment asks the platform to sign and submit the payment's
// transaction to the chain, returning the transaction identifier.
func (c *Client) SubmitPayment(ctx context.Context, paymentID string) (string, error) {
	var out struct {
		TxID string `json:"txid"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Post("/payments/" + paymentID + "/submit")
	if err := c.checkResponse(resp, err, "submitting payment "+paymentID); err != nil {
		return "", err
	}
	if out.TxID == "" {
		return "", apperrors.New(apperrors.CodeDependency, "platform returned empty txid for payment "+paymentID)
	}
	return out.TxID, nil
}

// GetTransactionMemo reads the on-chain memo for a transaction via its
// horizon link. The memo is the source of truth when validating webhooks.
func (c *Client) GetTransactionMemo(ctx context.Context, txLink string) (string, error) {
	if txLink == "" {
		return "", apperrors.New(apperrors.CodeValidation, "transaction link is required")
	}
	var out struct {
		Memo string `json:"memo"`
	}
	resp, err := c.horizon.R().
		SetContext(ctx).
		SetResult(&out).
		Get(txLink)
	if err := c.checkResponse(resp, err, "fetching transaction memo"); err != nil {
		return "", err
	}
	return out.Memo, nil
}

func (c *Client) checkResponse(resp *resty.Response, err error, action string) error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return apperrors.Wrap(apperrors.CodeTimeout, err, action+" timed out")
		}
		return apperrors.Wrap(apperrors.CodeDependency, err, action+" failed")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return apperrors.New(apperrors.CodeNotFound, action+": payment not found on platform")
	}
	if resp.IsError() {
		return apperrors.New(
			apperrors.CodeDependency,
			fmt.Sprintf("%s: platform responded %d", action, resp.StatusCode()),
		).WithDetails(map[string]any{"body": resp.String()})
	}
	return nil
}
