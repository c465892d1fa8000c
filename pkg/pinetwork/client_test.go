package pinetwork

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pimartlabs/pimart-backend/pkg/config"
	apperrors "github.com/pimartlabs/pimart-backend/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(config.PlatformConfig{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		HorizonBaseURL: srv.URL,
		Timeout:        2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestGetPaymentDecodesDTO(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pi_abc", r.URL.Path)
		assert.Equal(t, "Key test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(PaymentDTO{
			Identifier: "pi_abc",
			UserUID:    "uid-1",
			Amount:     decimal.RequireFromString("3.14"),
			Memo:       "pimart order",
			Direction:  DirectionUserToApp,
			Status:     StatusDTO{DeveloperApproved: true},
		})
	}))

	dto, err := client.GetPayment(context.Background(), "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, "pi_abc", dto.Identifier)
	assert.True(t, dto.Amount.Equal(decimal.RequireFromString("3.14")))
	assert.True(t, dto.Status.DeveloperApproved)
}

func TestGetPaymentNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetPayment(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestServerErrorMapsToDependency(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.ApprovePayment(context.Background(), "pi_abc")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDependency))
}

func TestTimeoutMapsToTimeoutCode(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.GetPayment(ctx, "pi_abc")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTimeout))
}

func TestSubmitPaymentRejectsEmptyTxID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := client.SubmitPayment(context.Background(), "pi_abc")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDependency))
}

func TestGetTransactionMemo(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/tx1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"memo":"order-memo"}`))
	}))

	memo, err := client.GetTransactionMemo(context.Background(), "/transactions/tx1")
	require.NoError(t, err)
	assert.Equal(t, "order-memo", memo)
}
