package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: &buf})

	ctx := logg.WithPaymentID(context.Background(), "pi_abc123")
	ctx = logg.WithOrderID(ctx, "ord_1")
	logg.Info(ctx, "payment approved")

	out := buf.String()
	if !strings.Contains(out, `"payment_id":"pi_abc123"`) {
		t.Fatalf("payment_id missing from output: %s", out)
	}
	if !strings.Contains(out, `"order_id":"ord_1"`) {
		t.Fatalf("order_id missing from output: %s", out)
	}
	if !strings.Contains(out, `"service":"test"`) {
		t.Fatalf("service missing from output: %s", out)
	}
}

func TestParseLevelFallback(t *testing.T) {
	if ParseLevel("nonsense") != zerolog.InfoLevel {
		t.Fatal("unknown level should fall back to info")
	}
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Fatal("debug level should parse")
	}
}
