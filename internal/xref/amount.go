package xref

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing settlement amount %q: %w", raw, err)
	}
	return amount, nil
}
