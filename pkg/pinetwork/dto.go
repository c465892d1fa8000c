package pinetwork

import "github.com/shopspring/decimal"

// Direction of a platform payment relative to the app wallet.
const (
	DirectionUserToApp = "user_to_app"
	DirectionAppToUser = "app_to_user"
)

// PaymentDTO is the platform's view of a payment. Treat it as a read-only
// snapshot; the platform owns every field.
type PaymentDTO struct {
	Identifier  string          `json:"identifier"`
	UserUID     string          `json:"user_uid"`
	Amount      decimal.Decimal `json:"amount"`
	Memo        string          `json:"memo"`
	Metadata    Metadata        `json:"metadata"`
	Direction   string          `json:"direction"`
	ToAddress   string          `json:"to_address"`
	CreatedAt   string          `json:"created_at"`
	Status      StatusDTO       `json:"status"`
	Transaction *TransactionDTO `json:"transaction,omitempty"`
}

// StatusDTO mirrors the platform's payment status flags.
type StatusDTO struct {
	DeveloperApproved   bool `json:"developer_approved"`
	TransactionVerified bool `json:"transaction_verified"`
	DeveloperCompleted  bool `json:"developer_completed"`
	Cancelled           bool `json:"cancelled"`
	UserCancelled       bool `json:"user_cancelled"`
}

// TransactionDTO is present once the payment reaches the chain.
type TransactionDTO struct {
	TxID     string `json:"txid"`
	Verified bool   `json:"verified"`
	Link     string `json:"_link"`
}

// Metadata is the app-defined payload attached to a payment at creation time.
// It carries everything needed to rebuild the order on webhook delivery.
type Metadata struct {
	PaymentType       string          `json:"payment_type"`
	SellerExternalID  string          `json:"seller_external_id,omitempty"`
	MembershipClass   string          `json:"membership_class,omitempty"`
	FulfillmentMethod string          `json:"fulfillment_method,omitempty"`
	BuyerNote         string          `json:"buyer_note,omitempty"`
	OrderItems        []OrderItemMeta `json:"order_items,omitempty"`
}

// OrderItemMeta identifies one purchased line inside payment metadata.
type OrderItemMeta struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// CreatePaymentInput describes an app-to-user payment to be created.
type CreatePaymentInput struct {
	Amount   decimal.Decimal `json:"amount"`
	Memo     string          `json:"memo"`
	Metadata Metadata        `json:"metadata"`
	UID      string          `json:"uid"`
}
