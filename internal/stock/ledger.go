package stock

import (
	"fmt"

	"github.com/pimartlabs/pimart-backend/pkg/enums"
	apperrors "github.com/pimartlabs/pimart-backend/pkg/errors"
)

// countIndex maps the countable levels onto remaining units.
var countIndex = map[enums.StockLevel]int{
	enums.StockLevelSold:       0,
	enums.StockLevelAvailable1: 1,
	enums.StockLevelAvailable2: 2,
	enums.StockLevelAvailable3: 3,
}

var levelByCount = map[int]enums.StockLevel{
	0: enums.StockLevelSold,
	1: enums.StockLevelAvailable1,
	2: enums.StockLevelAvailable2,
	3: enums.StockLevelAvailable3,
}

const maxCountedUnits = 3

// ApplyOrder returns the stock level after selling qty units. Absorbing
// levels never change. Counted levels decrement and reach sold at zero;
// overselling is rejected rather than clamped.
func ApplyOrder(level enums.StockLevel, qty int) (enums.StockLevel, error) {
	if qty <= 0 {
		return "", apperrors.New(apperrors.CodeValidation, fmt.Sprintf("quantity must be positive, got %d", qty))
	}
	if !level.IsValid() {
		return "", apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown stock level %q", level))
	}
	if !level.IsCounted() {
		return level, nil
	}

	current := countIndex[level]
	if qty > current {
		return "", apperrors.New(
			apperrors.CodeOutOfStock,
			fmt.Sprintf("cannot sell %d units at level %s", qty, level),
		).WithDetails(map[string]any{"available": current, "requested": qty})
	}
	return levelByCount[current-qty], nil
}

// ApplyRollback returns the stock level after returning qty units, undoing a
// prior sale. Absorbing levels never change. Counted levels increment and cap
// at the top of the scale since the scale cannot represent more.
func ApplyRollback(level enums.StockLevel, qty int) (enums.StockLevel, error) {
	if qty <= 0 {
		return "", apperrors.New(apperrors.CodeValidation, fmt.Sprintf("quantity must be positive, got %d", qty))
	}
	if !level.IsValid() {
		return "", apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown stock level %q", level))
	}
	if !level.IsCounted() {
		return level, nil
	}

	restored := countIndex[level] + qty
	if restored > maxCountedUnits {
		restored = maxCountedUnits
	}
	return levelByCount[restored], nil
}
