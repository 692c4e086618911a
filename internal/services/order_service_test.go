package services

import (
	"fmt"
	"testing"

	"merch_shop/internal/fiscal"
	"merch_shop/internal/models"
	"merch_shop/internal/money"
	"merch_shop/internal/repository"
	"merch_shop/pkg/click"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const adminID int64 = 777

type fakeGateway struct {
	invoiceCalls  int
	fiscalCalls   int
	invoiceErr    error
	fiscalErr     error
	lastPaymentID string
	lastReceived  money.Amount
	lastItems     []fiscal.LineItem
}

func (g *fakeGateway) CreateInvoice(merchantTransID string, amount money.Amount, phone string) (*click.InvoiceResult, error) {
	g.invoiceCalls++
	if g.invoiceErr != nil {
		return nil, g.invoiceErr
	}
	return &click.InvoiceResult{InvoiceID: 555, PaymentURL: "https://pay.example/555"}, nil
}

func (g *fakeGateway) SubmitFiscalData(paymentID string, items []fiscal.LineItem, received money.Amount) (*click.FiscalResult, error) {
	g.fiscalCalls++
	g.lastPaymentID = paymentID
	g.lastItems = items
	g.lastReceived = received
	if g.fiscalErr != nil {
		return nil, g.fiscalErr
	}
	return &click.FiscalResult{}, nil
}

type fakeNotifier struct {
	submitted  int
	rejected   int
	priced     int
	linkIssued int
	completed  int
	fiscalFail int
}

func (n *fakeNotifier) OrderSubmitted(*models.Order, *models.Client)      { n.submitted++ }
func (n *fakeNotifier) OrderRejected(*models.Order)                      { n.rejected++ }
func (n *fakeNotifier) PriceProposed(*models.Order)                      { n.priced++ }
func (n *fakeNotifier) PaymentLinkIssued(*models.Order)                  { n.linkIssued++ }
func (n *fakeNotifier) PaymentCompleted(*models.Order, []fiscal.LineItem) { n.completed++ }
func (n *fakeNotifier) FiscalSubmissionFailed(*models.Order, error)      { n.fiscalFail++ }

type fixture struct {
	svc      OrderService
	orders   repository.OrderRepository
	gateway  *fakeGateway
	notifier *fakeNotifier
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Client{}, &models.Order{}))
	require.NoError(t, db.Create(&models.Client{ID: 1001, Username: "aziz", Contact: "+998901234567", Name: "Aziz"}).Error)

	orders := repository.NewOrderRepository(db)
	clients := repository.NewClientRepository(db)
	gateway := &fakeGateway{}
	notifier := &fakeNotifier{}
	svc := NewOrderService(orders, clients, gateway, notifier, []int64{adminID})
	return &fixture{svc: svc, orders: orders, gateway: gateway, notifier: notifier}
}

func draft() *OrderDraft {
	return &OrderDraft{ClientID: 1001, Product: "Mug", Quantity: 2, DesignText: "hello"}
}

// submitPaid walks an order all the way to awaiting_payment and returns it.
func (f *fixture) toAwaitingPayment(t *testing.T) *models.Order {
	t.Helper()
	order, err := f.svc.SubmitOrder(draft())
	require.NoError(t, err)
	_, err = f.svc.Approve(order.ID, adminID)
	require.NoError(t, err)
	_, err = f.svc.SetPrice(order.ID, money.FromSum(50000))
	require.NoError(t, err)
	order, err = f.svc.ClientConfirm(order.ID)
	require.NoError(t, err)
	return order
}

func TestSubmitOrder(t *testing.T) {
	f := setup(t)

	order, err := f.svc.SubmitOrder(draft())
	require.NoError(t, err)

	got, err := f.svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderAwaitingApproval, got.Status)
	assert.False(t, got.IsPaid)
	assert.Nil(t, got.MerchantTransID)
	assert.Equal(t, 1, f.notifier.submitted)
}

func TestSubmitOrderValidation(t *testing.T) {
	f := setup(t)

	d := draft()
	d.Quantity = 0
	_, err := f.svc.SubmitOrder(d)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	d = draft()
	d.Product = "Spaceship"
	_, err = f.svc.SubmitOrder(d)
	assert.ErrorIs(t, err, models.ErrUnknownProduct)

	d = draft()
	d.ClientID = 42
	_, err = f.svc.SubmitOrder(d)
	assert.ErrorIs(t, err, models.ErrClientNotFound)
}

func TestApproveRequiresAdmin(t *testing.T) {
	f := setup(t)
	order, err := f.svc.SubmitOrder(draft())
	require.NoError(t, err)

	_, err = f.svc.Approve(order.ID, 12345)
	assert.ErrorIs(t, err, models.ErrForbidden)

	got, err := f.svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderAwaitingApproval, got.Status)
}

func TestSetPriceGuards(t *testing.T) {
	f := setup(t)
	order, err := f.svc.SubmitOrder(draft())
	require.NoError(t, err)

	// Not yet approved.
	_, err = f.svc.SetPrice(order.ID, money.FromSum(100))
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = f.svc.Approve(order.ID, adminID)
	require.NoError(t, err)

	_, err = f.svc.SetPrice(order.ID, 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = f.svc.SetPrice(order.ID, -5)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	got, err := f.svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderAwaitingPrice, got.Status)
	assert.Nil(t, got.UnitPrice)
}

func TestSetPriceComputesTotal(t *testing.T) {
	f := setup(t)
	order, err := f.svc.SubmitOrder(draft())
	require.NoError(t, err)
	_, err = f.svc.Approve(order.ID, adminID)
	require.NoError(t, err)

	priced, err := f.svc.SetPrice(order.ID, money.FromSum(50000))
	require.NoError(t, err)
	require.NotNil(t, priced.TotalAmount)
	assert.Equal(t, money.FromSum(100000), *priced.TotalAmount)
	assert.Equal(t, models.OrderAwaitingConfirmation, priced.Status)
	assert.Equal(t, 1, f.notifier.priced)
}

func TestClientConfirmAssignsTransactionOnce(t *testing.T) {
	f := setup(t)
	order := f.toAwaitingPayment(t)
	require.NotNil(t, order.MerchantTransID)
	first := *order.MerchantTransID
	assert.Equal(t, "https://pay.example/555", order.PaymentURL)

	// Second confirm is a state-guarded no-op with the same transaction id.
	again, err := f.svc.ClientConfirm(order.ID)
	require.NoError(t, err)
	require.NotNil(t, again.MerchantTransID)
	assert.Equal(t, first, *again.MerchantTransID)
	assert.Equal(t, 1, f.gateway.invoiceCalls)
}

func TestClientConfirmGatewayFailureKeepsState(t *testing.T) {
	f := setup(t)
	order, err := f.svc.SubmitOrder(draft())
	require.NoError(t, err)
	_, err = f.svc.Approve(order.ID, adminID)
	require.NoError(t, err)
	_, err = f.svc.SetPrice(order.ID, money.FromSum(50000))
	require.NoError(t, err)

	f.gateway.invoiceErr = fmt.Errorf("%w: boom", models.ErrGateway)
	_, err = f.svc.ClientConfirm(order.ID)
	assert.ErrorIs(t, err, models.ErrGateway)

	got, err := f.svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderAwaitingConfirmation, got.Status, "status must not advance on invoice failure")
	require.NotNil(t, got.MerchantTransID)
	assigned := *got.MerchantTransID

	// Retry succeeds and reuses the transaction id assigned the first time.
	f.gateway.invoiceErr = nil
	confirmed, err := f.svc.ClientConfirm(order.ID)
	require.NoError(t, err)
	assert.Equal(t, assigned, *confirmed.MerchantTransID)
	assert.Equal(t, models.OrderAwaitingPayment, confirmed.Status)
}

func TestClientConfirmWithoutPrice(t *testing.T) {
	f := setup(t)
	order, err := f.svc.SubmitOrder(draft())
	require.NoError(t, err)

	_, err = f.svc.ClientConfirm(order.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestClientCancelPrePayment(t *testing.T) {
	f := setup(t)
	order, err := f.svc.SubmitOrder(draft())
	require.NoError(t, err)

	cancelled, err := f.svc.ClientCancel(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelledByClient, cancelled.Status)

	// Terminal: nothing moves it again.
	_, err = f.svc.ClientCancel(order.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = f.svc.Approve(order.ID, adminID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestRejectNotifiesClient(t *testing.T) {
	f := setup(t)
	order, err := f.svc.SubmitOrder(draft())
	require.NoError(t, err)

	rejected, err := f.svc.Reject(order.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderRejectedByAdmin, rejected.Status)
	assert.Equal(t, 1, f.notifier.rejected)
}

func TestGatewayPrepare(t *testing.T) {
	f := setup(t)
	order := f.toAwaitingPayment(t)
	transID := *order.MerchantTransID

	prepareID, err := f.svc.OnGatewayPrepare(transID, money.FromSum(100000))
	require.NoError(t, err)
	assert.NotEmpty(t, prepareID)

	// Duplicate prepare is idempotent.
	again, err := f.svc.OnGatewayPrepare(transID, money.FromSum(100000))
	require.NoError(t, err)
	assert.Equal(t, prepareID, again)

	got, err := f.svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPaid, "prepare must not touch is_paid")
}

func TestGatewayPrepareUnknownTransaction(t *testing.T) {
	f := setup(t)
	_, err := f.svc.OnGatewayPrepare("never-seen", 100)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestGatewayCompleteHappyPath(t *testing.T) {
	f := setup(t)
	order := f.toAwaitingPayment(t)
	transID := *order.MerchantTransID
	total := money.FromSum(100000)

	prepareID, err := f.svc.OnGatewayPrepare(transID, total)
	require.NoError(t, err)

	result, err := f.svc.OnGatewayComplete("click-1", transID, prepareID, total)
	require.NoError(t, err)

	got, err := f.svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.Equal(t, models.OrderCompleted, got.Status)

	require.Len(t, result.Items, 1)
	assert.Equal(t, int64(total), result.Items[0].Price)
	assert.Equal(t, 2, result.Items[0].Amount)

	assert.Equal(t, 1, f.gateway.fiscalCalls)
	assert.Equal(t, "click-1", f.gateway.lastPaymentID)
	assert.Equal(t, total, f.gateway.lastReceived)
	assert.Equal(t, 1, f.notifier.completed)
}

func TestGatewayCompleteIdempotent(t *testing.T) {
	f := setup(t)
	order := f.toAwaitingPayment(t)
	transID := *order.MerchantTransID
	total := money.FromSum(100000)

	prepareID, err := f.svc.OnGatewayPrepare(transID, total)
	require.NoError(t, err)
	_, err = f.svc.OnGatewayComplete("click-1", transID, prepareID, total)
	require.NoError(t, err)

	_, err = f.svc.OnGatewayComplete("click-1", transID, prepareID, total)
	assert.ErrorIs(t, err, models.ErrAlreadyPaid)

	assert.Equal(t, 1, f.gateway.fiscalCalls, "exactly one fiscal submission")
	assert.Equal(t, 1, f.notifier.completed, "exactly one payment notification")
}

func TestGatewayCompleteBeforePrepare(t *testing.T) {
	f := setup(t)
	order := f.toAwaitingPayment(t)
	transID := *order.MerchantTransID

	_, err := f.svc.OnGatewayComplete("click-1", transID, "1", money.FromSum(100000))
	assert.ErrorIs(t, err, models.ErrTransactionMismatch)

	got, err := f.svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPaid)
	assert.Zero(t, f.gateway.fiscalCalls)
}

func TestGatewayCompletePrepareIDMismatch(t *testing.T) {
	f := setup(t)
	order := f.toAwaitingPayment(t)
	transID := *order.MerchantTransID

	prepareID, err := f.svc.OnGatewayPrepare(transID, money.FromSum(100000))
	require.NoError(t, err)

	_, err = f.svc.OnGatewayComplete("click-1", transID, prepareID+"9", money.FromSum(100000))
	assert.ErrorIs(t, err, models.ErrTransactionMismatch)

	got, err := f.svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPaid)
}

func TestGatewayCompleteFiscalFailureKeepsPayment(t *testing.T) {
	f := setup(t)
	order := f.toAwaitingPayment(t)
	transID := *order.MerchantTransID
	total := money.FromSum(100000)

	prepareID, err := f.svc.OnGatewayPrepare(transID, total)
	require.NoError(t, err)

	f.gateway.fiscalErr = fmt.Errorf("%w: ofd down", models.ErrGateway)
	result, err := f.svc.OnGatewayComplete("click-1", transID, prepareID, total)
	require.NoError(t, err, "fiscal submission failure must not fail the payment")
	require.NotNil(t, result)

	got, err := f.svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.Equal(t, models.OrderCompleted, got.Status)
	assert.Equal(t, 1, f.notifier.fiscalFail, "operator channel told about the fiscal failure")
	assert.Equal(t, 1, f.notifier.completed)
}

func TestFullScenario(t *testing.T) {
	// admin sets unitPrice=50000 for quantity 2 => total 100000; client
	// confirms => transaction id assigned; prepare + matching complete =>
	// paid and completed.
	f := setup(t)

	order, err := f.svc.SubmitOrder(draft())
	require.NoError(t, err)
	_, err = f.svc.Approve(order.ID, adminID)
	require.NoError(t, err)

	priced, err := f.svc.SetPrice(order.ID, money.FromSum(50000))
	require.NoError(t, err)
	assert.Equal(t, money.FromSum(100000), *priced.TotalAmount)

	confirmed, err := f.svc.ClientConfirm(order.ID)
	require.NoError(t, err)
	require.NotNil(t, confirmed.MerchantTransID)

	prepareID, err := f.svc.OnGatewayPrepare(*confirmed.MerchantTransID, money.FromSum(100000))
	require.NoError(t, err)

	_, err = f.svc.OnGatewayComplete("click-77", *confirmed.MerchantTransID, prepareID, money.FromSum(100000))
	require.NoError(t, err)

	got, err := f.svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.Equal(t, models.OrderCompleted, got.Status)
}
