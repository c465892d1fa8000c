package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pimartlabs/pimart-backend/pkg/db/models"
	"github.com/pimartlabs/pimart-backend/pkg/enums"
	apperrors "github.com/pimartlabs/pimart-backend/pkg/errors"
	"github.com/pimartlabs/pimart-backend/pkg/logger"
	"github.com/pimartlabs/pimart-backend/pkg/pinetwork"

	"github.com/pimartlabs/pimart-backend/internal/memberships"
	"github.com/pimartlabs/pimart-backend/internal/orders"
	"github.com/pimartlabs/pimart-backend/internal/payments"
)

type stubPlatform struct {
	payment *pinetwork.PaymentDTO
	memo    string

	approved  []string
	completed []string
	cancelled []string

	memoErr error
}

func (s *stubPlatform) GetPayment(ctx context.Context, paymentID string) (*pinetwork.PaymentDTO, error) {
	return s.payment, nil
}

func (s *stubPlatform) ApprovePayment(ctx context.Context, paymentID string) (*pinetwork.PaymentDTO, error) {
	s.approved = append(s.approved, paymentID)
	return s.payment, nil
}

func (s *stubPlatform) CompletePayment(ctx context.Context, paymentID, txID string) (*pinetwork.PaymentDTO, error) {
	s.completed = append(s.completed, paymentID)
	return s.payment, nil
}

func (s *stubPlatform) CancelPayment(ctx context.Context, paymentID string) (*pinetwork.PaymentDTO, error) {
	s.cancelled = append(s.cancelled, paymentID)
	return s.payment, nil
}

func (s *stubPlatform) GetTransactionMemo(ctx context.Context, txLink string) (string, error) {
	if s.memoErr != nil {
		return "", s.memoErr
	}
	return s.memo, nil
}

type stubPayments struct {
	byPlatformID map[string]*models.Payment

	ensured   []payments.EnsurePaymentInput
	completed []string
	cancelled []string
}

func newStubPayments() *stubPayments {
	return &stubPayments{byPlatformID: make(map[string]*models.Payment)}
}

func (s *stubPayments) EnsurePayment(ctx context.Context, tx *gorm.DB, input payments.EnsurePaymentInput) (*models.Payment, bool, error) {
	if existing, ok := s.byPlatformID[input.PlatformPaymentID]; ok {
		return existing, false, nil
	}
	s.ensured = append(s.ensured, input)
	payment := &models.Payment{
		ID:                uuid.New(),
		PlatformPaymentID: input.PlatformPaymentID,
		UserID:            input.UserID,
		Amount:            input.Amount,
		Memo:              input.Memo,
		Type:              input.Type,
	}
	s.byPlatformID[input.PlatformPaymentID] = payment
	return payment, true, nil
}

func (s *stubPayments) MarkCompleted(ctx context.Context, tx *gorm.DB, platformID, txID, txLink string) (*models.Payment, error) {
	payment, ok := s.byPlatformID[platformID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "payment not found")
	}
	payment.Paid = true
	s.completed = append(s.completed, platformID)
	return payment, nil
}

func (s *stubPayments) MarkCancelled(ctx context.Context, tx *gorm.DB, platformID string) (*models.Payment, error) {
	payment, ok := s.byPlatformID[platformID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "payment not found")
	}
	payment.Cancelled = true
	s.cancelled = append(s.cancelled, platformID)
	return payment, nil
}

func (s *stubPayments) FindByPlatformID(ctx context.Context, platformID string) (*models.Payment, error) {
	payment, ok := s.byPlatformID[platformID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "payment not found")
	}
	return payment, nil
}

type stubOrders struct {
	created   []orders.CreateOrderInput
	paid      []uuid.UUID
	cancelled []uuid.UUID
	order     *models.Order
}

func (s *stubOrders) CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	s.created = append(s.created, input)
	order := &models.Order{
		ID:        uuid.New(),
		BuyerID:   input.BuyerID,
		SellerID:  input.SellerID,
		PaymentID: input.PaymentID,
	}
	s.order = order
	return order, nil
}

func (s *stubOrders) MarkPaid(ctx context.Context, orderID, paymentID uuid.UUID) error {
	s.paid = append(s.paid, orderID)
	return nil
}

func (s *stubOrders) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	s.cancelled = append(s.cancelled, orderID)
	return nil
}

func (s *stubOrders) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Order, error) {
	if s.order == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

type stubXrefs struct {
	created   []uuid.UUID
	completed []uuid.UUID
	failed    []uuid.UUID
}

func (s *stubXrefs) CreateForOrder(ctx context.Context, tx *gorm.DB, orderID, u2aPaymentID uuid.UUID) (*models.PaymentCrossReference, error) {
	s.created = append(s.created, orderID)
	return &models.PaymentCrossReference{ID: uuid.New(), OrderID: orderID, U2APaymentID: u2aPaymentID}, nil
}

func (s *stubXrefs) MarkU2ACompleted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, completedAt time.Time) error {
	s.completed = append(s.completed, orderID)
	return nil
}

func (s *stubXrefs) MarkU2AFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	s.failed = append(s.failed, orderID)
	return nil
}

type stubMembers struct {
	applied []memberships.ApplyInput
}

func (s *stubMembers) Apply(ctx context.Context, tx *gorm.DB, input memberships.ApplyInput) error {
	s.applied = append(s.applied, input)
	return nil
}

type stubUsers struct {
	byExternalID map[string]*models.User
}

func (s *stubUsers) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	user, ok := s.byExternalID[externalID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubCollector struct {
	runs int
}

func (s *stubCollector) Collect(ctx context.Context) (int, error) {
	s.runs++
	return 0, nil
}

type fixture struct {
	platform  *stubPlatform
	payments  *stubPayments
	orders    *stubOrders
	xrefs     *stubXrefs
	members   *stubMembers
	users     *stubUsers
	collector *stubCollector
	svc       Orchestrator
}

func newFixture(t *testing.T, dto *pinetwork.PaymentDTO) *fixture {
	t.Helper()

	f := &fixture{
		platform:  &stubPlatform{payment: dto},
		payments:  newStubPayments(),
		orders:    &stubOrders{},
		xrefs:     &stubXrefs{},
		members:   &stubMembers{},
		users:     &stubUsers{byExternalID: make(map[string]*models.User)},
		collector: &stubCollector{},
	}
	svc, err := New(Options{
		Platform:    f.platform,
		Payments:    f.payments,
		Orders:      f.orders,
		OrderReader: f.orders,
		Xrefs:       f.xrefs,
		Memberships: f.members,
		Users:       f.users,
		Collector:   f.collector,
		Logger:      logger.New(logger.Options{ServiceName: "reconcile-test"}),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func checkoutDTO(platformID, buyerUID, sellerUID string, itemID uuid.UUID) *pinetwork.PaymentDTO {
	return &pinetwork.PaymentDTO{
		Identifier: platformID,
		UserUID:    buyerUID,
		Amount:     decimal.RequireFromString("10"),
		Memo:       "order memo",
		Direction:  pinetwork.DirectionUserToApp,
		Metadata: pinetwork.Metadata{
			PaymentType:      string(enums.PaymentTypeBuyerCheckout),
			SellerExternalID: sellerUID,
			OrderItems: []pinetwork.OrderItemMeta{
				{ItemID: itemID.String(), Quantity: 1},
			},
		},
	}
}

func TestOnApprovalCreatesOrderAndApproves(t *testing.T) {
	platformID := "pi_" + uuid.NewString()[:8]
	itemID := uuid.New()
	dto := checkoutDTO(platformID, "buyer-uid", "seller-uid", itemID)
	f := newFixture(t, dto)

	buyer := &models.User{ID: uuid.New(), ExternalID: "buyer-uid"}
	seller := &models.User{ID: uuid.New(), ExternalID: "seller-uid"}
	f.users.byExternalID["buyer-uid"] = buyer
	f.users.byExternalID["seller-uid"] = seller

	outcome, err := f.svc.OnApproval(context.Background(), platformID)
	require.NoError(t, err)
	assert.True(t, outcome.OK)

	require.Len(t, f.payments.ensured, 1)
	assert.Equal(t, buyer.ID, f.payments.ensured[0].UserID)

	require.Len(t, f.orders.created, 1)
	created := f.orders.created[0]
	assert.Equal(t, buyer.ID, created.BuyerID)
	assert.Equal(t, seller.ID, created.SellerID)
	require.Len(t, created.Items, 1)
	assert.Equal(t, itemID, created.Items[0].SellerItemID)

	assert.Len(t, f.xrefs.created, 1)
	assert.Equal(t, []string{platformID}, f.platform.approved)
}

func TestOnApprovalDuplicateReportsAlreadyExists(t *testing.T) {
	platformID := "pi_" + uuid.NewString()[:8]
	dto := checkoutDTO(platformID, "buyer-uid", "seller-uid", uuid.New())
	f := newFixture(t, dto)

	f.users.byExternalID["buyer-uid"] = &models.User{ID: uuid.New(), ExternalID: "buyer-uid"}
	f.users.byExternalID["seller-uid"] = &models.User{ID: uuid.New(), ExternalID: "seller-uid"}

	first, err := f.svc.OnApproval(context.Background(), platformID)
	require.NoError(t, err)
	assert.True(t, first.OK)

	second, err := f.svc.OnApproval(context.Background(), platformID)
	require.NoError(t, err)
	assert.True(t, second.OK)
	assert.Equal(t, "payment already exists", second.Message)

	// exactly one payment and one order despite the duplicate delivery
	assert.Len(t, f.payments.ensured, 1)
	assert.Len(t, f.orders.created, 1)
}

func TestOnApprovalMembershipSkipsOrder(t *testing.T) {
	platformID := "pi_" + uuid.NewString()[:8]
	dto := &pinetwork.PaymentDTO{
		Identifier: platformID,
		UserUID:    "buyer-uid",
		Amount:     decimal.RequireFromString("2"),
		Memo:       "membership",
		Metadata: pinetwork.Metadata{
			PaymentType:     string(enums.PaymentTypeMembership),
			MembershipClass: "gold",
		},
	}
	f := newFixture(t, dto)
	f.users.byExternalID["buyer-uid"] = &models.User{ID: uuid.New(), ExternalID: "buyer-uid"}

	outcome, err := f.svc.OnApproval(context.Background(), platformID)
	require.NoError(t, err)
	assert.True(t, outcome.OK)
	assert.Empty(t, f.orders.created)
	assert.Empty(t, f.xrefs.created)
	assert.Len(t, f.platform.approved, 1)
}

func TestOnCompletionSettlesBuyerCheckout(t *testing.T) {
	platformID := "pi_" + uuid.NewString()[:8]
	dto := checkoutDTO(platformID, "buyer-uid", "seller-uid", uuid.New())
	f := newFixture(t, dto)
	f.users.byExternalID["buyer-uid"] = &models.User{ID: uuid.New(), ExternalID: "buyer-uid"}
	f.users.byExternalID["seller-uid"] = &models.User{ID: uuid.New(), ExternalID: "seller-uid"}

	_, err := f.svc.OnApproval(context.Background(), platformID)
	require.NoError(t, err)

	outcome, err := f.svc.OnCompletion(context.Background(), platformID, "tx123")
	require.NoError(t, err)
	assert.True(t, outcome.OK)

	assert.Equal(t, []string{platformID}, f.payments.completed)
	require.Len(t, f.orders.paid, 1)
	assert.Equal(t, f.orders.order.ID, f.orders.paid[0])
	assert.Contains(t, f.xrefs.completed, f.orders.order.ID)
	assert.Equal(t, []string{platformID}, f.platform.completed)
	assert.Equal(t, 1, f.collector.runs)
}

func TestOnCompletionMembershipInvokesCollaborator(t *testing.T) {
	platformID := "pi_" + uuid.NewString()[:8]
	dto := &pinetwork.PaymentDTO{
		Identifier: platformID,
		UserUID:    "buyer-uid",
		Amount:     decimal.RequireFromString("2"),
		Memo:       "membership",
		Metadata: pinetwork.Metadata{
			PaymentType:     string(enums.PaymentTypeMembership),
			MembershipClass: "gold",
		},
	}
	f := newFixture(t, dto)
	buyer := &models.User{ID: uuid.New(), ExternalID: "buyer-uid"}
	f.users.byExternalID["buyer-uid"] = buyer

	_, err := f.svc.OnApproval(context.Background(), platformID)
	require.NoError(t, err)

	outcome, err := f.svc.OnCompletion(context.Background(), platformID, "tx123")
	require.NoError(t, err)
	assert.True(t, outcome.OK)

	require.Len(t, f.members.applied, 1)
	assert.Equal(t, buyer.ID, f.members.applied[0].UserID)
	assert.Equal(t, "gold", f.members.applied[0].Class)
	assert.Empty(t, f.orders.paid)
	assert.Equal(t, 0, f.collector.runs)
}

func TestOnCancellationReleasesOrder(t *testing.T) {
	platformID := "pi_" + uuid.NewString()[:8]
	dto := checkoutDTO(platformID, "buyer-uid", "seller-uid", uuid.New())
	f := newFixture(t, dto)
	f.users.byExternalID["buyer-uid"] = &models.User{ID: uuid.New(), ExternalID: "buyer-uid"}
	f.users.byExternalID["seller-uid"] = &models.User{ID: uuid.New(), ExternalID: "seller-uid"}

	_, err := f.svc.OnApproval(context.Background(), platformID)
	require.NoError(t, err)

	outcome, err := f.svc.OnCancellation(context.Background(), platformID)
	require.NoError(t, err)
	assert.True(t, outcome.OK)

	assert.Equal(t, []string{platformID}, f.payments.cancelled)
	require.Len(t, f.orders.cancelled, 1)
	assert.Equal(t, f.orders.order.ID, f.orders.cancelled[0])
	assert.Equal(t, []string{platformID}, f.platform.cancelled)
}

func TestOnIncompleteFoundRejectsMemoMismatch(t *testing.T) {
	platformID := "pi_" + uuid.NewString()[:8]
	dto := checkoutDTO(platformID, "buyer-uid", "seller-uid", uuid.New())
	f := newFixture(t, dto)
	f.users.byExternalID["buyer-uid"] = &models.User{ID: uuid.New(), ExternalID: "buyer-uid"}
	f.users.byExternalID["seller-uid"] = &models.User{ID: uuid.New(), ExternalID: "seller-uid"}

	_, err := f.svc.OnApproval(context.Background(), platformID)
	require.NoError(t, err)

	f.platform.memo = "some_other_payment"
	outcome, err := f.svc.OnIncompleteFound(context.Background(), platformID, "tx123", "/transactions/tx123")
	require.Error(t, err)
	assert.False(t, outcome.OK)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMemoMismatch))

	// no mutation happened
	assert.Empty(t, f.payments.completed)
	assert.Empty(t, f.orders.paid)
	assert.Empty(t, f.platform.completed)
}

func TestOnIncompleteFoundCompletesOnMemoMatch(t *testing.T) {
	platformID := "pi_" + uuid.NewString()[:8]
	dto := checkoutDTO(platformID, "buyer-uid", "seller-uid", uuid.New())
	f := newFixture(t, dto)
	f.users.byExternalID["buyer-uid"] = &models.User{ID: uuid.New(), ExternalID: "buyer-uid"}
	f.users.byExternalID["seller-uid"] = &models.User{ID: uuid.New(), ExternalID: "seller-uid"}

	_, err := f.svc.OnApproval(context.Background(), platformID)
	require.NoError(t, err)

	f.platform.memo = platformID
	outcome, err := f.svc.OnIncompleteFound(context.Background(), platformID, "tx123", "/transactions/tx123")
	require.NoError(t, err)
	assert.True(t, outcome.OK)
	assert.Equal(t, []string{platformID}, f.payments.completed)
	assert.Equal(t, []string{platformID}, f.platform.completed)
}

func TestOnIncompleteFoundUnknownPayment(t *testing.T) {
	f := newFixture(t, &pinetwork.PaymentDTO{})

	outcome, err := f.svc.OnIncompleteFound(context.Background(), "pi_unknown", "tx123", "/transactions/tx123")
	require.Error(t, err)
	assert.False(t, outcome.OK)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
