package enums

import "fmt"

// PaymentType distinguishes what a platform payment pays for.
// BuyerCheckout and Membership are user-to-app payments; SellerPayout is
// the app-to-user direction created by the payout pipeline.
type PaymentType string

const (
	PaymentTypeBuyerCheckout PaymentType = "buyer_checkout"
	PaymentTypeMembership    PaymentType = "membership"
	PaymentTypeSellerPayout  PaymentType = "seller_payout"
)

var validPaymentTypes = []PaymentType{
	PaymentTypeBuyerCheckout,
	PaymentTypeMembership,
	PaymentTypeSellerPayout,
}

// String implements fmt.Stringer.
func (p PaymentType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentType.
func (p PaymentType) IsValid() bool {
	for _, candidate := range validPaymentTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentType converts raw input into a PaymentType.
func ParsePaymentType(value string) (PaymentType, error) {
	for _, candidate := range validPaymentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment type %q", value)
}
