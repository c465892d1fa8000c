package enums

import "fmt"

// StockLevel is the coarse per-item availability a seller advertises.
// The numbered levels are countable stock; the remaining levels never
// decrement when an order is placed.
type StockLevel string

const (
	StockLevelAvailable1     StockLevel = "available_1"
	StockLevelAvailable2     StockLevel = "available_2"
	StockLevelAvailable3     StockLevel = "available_3"
	StockLevelManyAvailable  StockLevel = "many_available"
	StockLevelMadeToOrder    StockLevel = "made_to_order"
	StockLevelOngoingService StockLevel = "ongoing_service"
	StockLevelSold           StockLevel = "sold"
)

var validStockLevels = []StockLevel{
	StockLevelAvailable1,
	StockLevelAvailable2,
	StockLevelAvailable3,
	StockLevelManyAvailable,
	StockLevelMadeToOrder,
	StockLevelOngoingService,
	StockLevelSold,
}

// String implements fmt.Stringer.
func (s StockLevel) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockLevel.
func (s StockLevel) IsValid() bool {
	for _, candidate := range validStockLevels {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsCounted reports whether the level represents countable inventory
// (the Available1..3/Sold scale) as opposed to the absorbing levels.
func (s StockLevel) IsCounted() bool {
	switch s {
	case StockLevelAvailable1, StockLevelAvailable2, StockLevelAvailable3, StockLevelSold:
		return true
	default:
		return false
	}
}

// ParseStockLevel converts raw input into a StockLevel.
func ParseStockLevel(value string) (StockLevel, error) {
	for _, candidate := range validStockLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock level %q", value)
}
