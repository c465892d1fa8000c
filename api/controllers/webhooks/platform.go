package webhooks

import (
	"context"
	"net/http"

	"github.com/pimartlabs/pimart-backend/api/responses"
	"github.com/pimartlabs/pimart-backend/api/validators"
	"github.com/pimartlabs/pimart-backend/internal/reconcile"
	pkgerrors "github.com/pimartlabs/pimart-backend/pkg/errors"
	"github.com/pimartlabs/pimart-backend/pkg/logger"
)

// Orchestrator is the reconciliation surface the platform webhooks drive.
type Orchestrator interface {
	OnApproval(ctx context.Context, platformPaymentID string) (reconcile.Outcome, error)
	OnCompletion(ctx context.Context, platformPaymentID, txID string) (reconcile.Outcome, error)
	OnCancellation(ctx context.Context, platformPaymentID string) (reconcile.Outcome, error)
	OnIncompleteFound(ctx context.Context, platformPaymentID, txID, txLink string) (reconcile.Outcome, error)
}

type approvalRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
}

type completionRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
	TxID      string `json:"txid" validate:"required"`
}

type cancellationRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
}

type incompleteRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
	TxID      string `json:"txid" validate:"required"`
	TxLink    string `json:"tx_link" validate:"required"`
}

// PlatformApprove handles the platform's server-approval callback for a
// payment the buyer has just authorised.
func PlatformApprove(svc Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var req approvalRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithPaymentID(ctx, req.PaymentID)
		}

		outcome, err := svc.OnApproval(ctx, req.PaymentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// PlatformComplete handles the server-completion callback once the buyer's
// transaction has been submitted on chain.
func PlatformComplete(svc Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var req completionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithPaymentID(ctx, req.PaymentID)
		}

		outcome, err := svc.OnCompletion(ctx, req.PaymentID, req.TxID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// PlatformCancel handles the cancellation callback for a payment the buyer
// abandoned or the platform expired.
func PlatformCancel(svc Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var req cancellationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithPaymentID(ctx, req.PaymentID)
		}

		outcome, err := svc.OnCancellation(ctx, req.PaymentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// PlatformIncomplete handles the incomplete-payment-found callback. The
// transaction memo is verified against the local payment record before any
// settlement runs.
func PlatformIncomplete(svc Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var req incompleteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithPaymentID(ctx, req.PaymentID)
		}

		outcome, err := svc.OnIncompleteFound(ctx, req.PaymentID, req.TxID, req.TxLink)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}
