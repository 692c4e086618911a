package services

import (
	"fmt"
	"log"
	"strconv"

	"merch_shop/internal/fiscal"
	"merch_shop/internal/models"
	"merch_shop/internal/money"
	"merch_shop/internal/repository"
	"merch_shop/pkg/click"

	"github.com/google/uuid"
)

// PaymentGateway is the outbound side of the payment processor.
type PaymentGateway interface {
	CreateInvoice(merchantTransID string, amount money.Amount, phoneNumber string) (*click.InvoiceResult, error)
	SubmitFiscalData(paymentID string, items []fiscal.LineItem, received money.Amount) (*click.FiscalResult, error)
}

// Notifier delivers lifecycle events to admins and clients. Delivery is
// best effort; implementations log their own failures.
type Notifier interface {
	OrderSubmitted(order *models.Order, client *models.Client)
	OrderRejected(order *models.Order)
	PriceProposed(order *models.Order)
	PaymentLinkIssued(order *models.Order)
	PaymentCompleted(order *models.Order, items []fiscal.LineItem)
	FiscalSubmissionFailed(order *models.Order, cause error)
}

// OrderDraft is the completed intake result handed to the core.
type OrderDraft struct {
	ClientID        int64
	Product         string
	Quantity        int
	DesignText      string
	DesignAssetRef  string
	LocationLat     *float64
	LocationLon     *float64
	DeliveryComment string
}

// PaymentResult is what a successful gateway complete callback produced.
type PaymentResult struct {
	Order *models.Order
	Items []fiscal.LineItem
}

type OrderService interface {
	SubmitOrder(draft *OrderDraft) (*models.Order, error)
	GetOrder(id uint) (*models.Order, error)
	GetOrderByTransactionID(merchantTransID string) (*models.Order, error)
	GetAllOrders() ([]models.Order, error)
	GetOrdersByClient(clientID int64) ([]models.Order, error)
	Approve(orderID uint, adminID int64) (*models.Order, error)
	Reject(orderID uint, adminID int64) (*models.Order, error)
	SetPrice(orderID uint, unitPrice money.Amount) (*models.Order, error)
	ClientConfirm(orderID uint) (*models.Order, error)
	ClientCancel(orderID uint) (*models.Order, error)
	OnGatewayPrepare(merchantTransID string, amount money.Amount) (string, error)
	OnGatewayComplete(clickTransID, merchantTransID, prepareID string, amount money.Amount) (*PaymentResult, error)
}

// orderTransitions is the lifecycle graph. A transition absent from the
// table is illegal; terminal states have no outgoing edges.
var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderAwaitingApproval:     {models.OrderAwaitingPrice, models.OrderRejectedByAdmin, models.OrderCancelledByClient},
	models.OrderAwaitingPrice:        {models.OrderAwaitingConfirmation, models.OrderCancelledByClient},
	models.OrderAwaitingConfirmation: {models.OrderAwaitingPayment, models.OrderCancelledByClient},
	models.OrderAwaitingPayment:      {models.OrderProcessing, models.OrderCancelledByClient},
	models.OrderProcessing:           {models.OrderCompleted},
	models.OrderCompleted:            {},
	models.OrderRejectedByAdmin:      {},
	models.OrderCancelledByClient:    {},
}

func canTransition(from, to models.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type orderService struct {
	orderRepo  repository.OrderRepository
	clientRepo repository.ClientRepository
	gateway    PaymentGateway
	notifier   Notifier
	adminIDs   map[int64]bool
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	clientRepo repository.ClientRepository,
	gateway PaymentGateway,
	notifier Notifier,
	adminIDs []int64,
) OrderService {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &orderService{
		orderRepo:  orderRepo,
		clientRepo: clientRepo,
		gateway:    gateway,
		notifier:   notifier,
		adminIDs:   admins,
	}
}

func (s *orderService) SubmitOrder(draft *OrderDraft) (*models.Order, error) {
	if draft.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", models.ErrInvalidInput, draft.Quantity)
	}
	if _, ok := models.Catalog[draft.Product]; !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownProduct, draft.Product)
	}
	client, err := s.clientRepo.GetByID(draft.ClientID)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ClientID:        draft.ClientID,
		Product:         draft.Product,
		Quantity:        draft.Quantity,
		DesignText:      draft.DesignText,
		DesignAssetRef:  draft.DesignAssetRef,
		LocationLat:     draft.LocationLat,
		LocationLon:     draft.LocationLon,
		DeliveryComment: draft.DeliveryComment,
		Status:          models.OrderAwaitingApproval,
	}
	if err := s.orderRepo.Create(order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.notifier.OrderSubmitted(order, client)
	return order, nil
}

func (s *orderService) GetOrder(id uint) (*models.Order, error) {
	return s.orderRepo.GetByID(id)
}

func (s *orderService) GetOrderByTransactionID(merchantTransID string) (*models.Order, error) {
	return s.orderRepo.GetByMerchantTransID(merchantTransID)
}

func (s *orderService) GetAllOrders() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

func (s *orderService) GetOrdersByClient(clientID int64) ([]models.Order, error) {
	return s.orderRepo.GetByClientID(clientID)
}

func (s *orderService) requireAdmin(adminID int64) error {
	if !s.adminIDs[adminID] {
		return fmt.Errorf("%w: %d is not an admin", models.ErrForbidden, adminID)
	}
	return nil
}

func (s *orderService) Approve(orderID uint, adminID int64) (*models.Order, error) {
	if err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}
	return s.moveTo(orderID, models.OrderAwaitingPrice, nil)
}

func (s *orderService) Reject(orderID uint, adminID int64) (*models.Order, error) {
	if err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}
	return s.moveTo(orderID, models.OrderRejectedByAdmin, func(order *models.Order) {
		s.notifier.OrderRejected(order)
	})
}

func (s *orderService) SetPrice(orderID uint, unitPrice money.Amount) (*models.Order, error) {
	if unitPrice <= 0 {
		return nil, fmt.Errorf("%w: unit price must be positive, got %d", models.ErrInvalidInput, unitPrice)
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if !canTransition(order.Status, models.OrderAwaitingConfirmation) {
		return nil, fmt.Errorf("%w: cannot price order %d in status %s", models.ErrInvalidTransition, orderID, order.Status)
	}

	total := unitPrice.Mul(order.Quantity)
	if err := s.orderRepo.SetPrice(orderID, unitPrice, total, models.OrderAwaitingConfirmation); err != nil {
		return nil, fmt.Errorf("failed to set price: %w", err)
	}
	order.UnitPrice = &unitPrice
	order.TotalAmount = &total
	order.Status = models.OrderAwaitingConfirmation

	s.notifier.PriceProposed(order)
	return order, nil
}

func (s *orderService) ClientConfirm(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	// A repeated confirmation after the payment link exists is a no-op; the
	// transaction id is never regenerated.
	if order.Status == models.OrderAwaitingPayment {
		return order, nil
	}
	if !canTransition(order.Status, models.OrderAwaitingPayment) {
		return nil, fmt.Errorf("%w: cannot confirm order %d in status %s", models.ErrInvalidTransition, orderID, order.Status)
	}
	if order.TotalAmount == nil {
		return nil, fmt.Errorf("%w: order %d has no price", models.ErrInvalidTransition, orderID)
	}

	if order.MerchantTransID == nil {
		transID := uuid.NewString()
		if err := s.orderRepo.SetTransactionID(orderID, transID); err != nil {
			return nil, err
		}
		order.MerchantTransID = &transID
	}

	client, err := s.clientRepo.GetByID(order.ClientID)
	if err != nil {
		return nil, err
	}

	// Not retried here: the remote call is not idempotent. On failure the
	// order stays awaiting confirmation and a later confirm reuses the
	// already-assigned transaction id.
	invoice, err := s.gateway.CreateInvoice(*order.MerchantTransID, *order.TotalAmount, client.Contact)
	if err != nil {
		return nil, err
	}

	if err := s.orderRepo.SetPaymentURL(orderID, invoice.PaymentURL, models.OrderAwaitingPayment); err != nil {
		return nil, fmt.Errorf("failed to store payment url: %w", err)
	}
	order.PaymentURL = invoice.PaymentURL
	order.Status = models.OrderAwaitingPayment

	s.notifier.PaymentLinkIssued(order)
	return order, nil
}

func (s *orderService) ClientCancel(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid || !order.Status.PrePayment() {
		return nil, fmt.Errorf("%w: cannot cancel order %d in status %s", models.ErrInvalidTransition, orderID, order.Status)
	}
	if err := s.orderRepo.UpdateStatus(orderID, models.OrderCancelledByClient); err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	order.Status = models.OrderCancelledByClient
	return order, nil
}

// OnGatewayPrepare records the reservation phase. Duplicate calls return
// the same prepare id and never touch is_paid.
func (s *orderService) OnGatewayPrepare(merchantTransID string, amount money.Amount) (string, error) {
	order, err := s.orderRepo.GetByMerchantTransID(merchantTransID)
	if err != nil {
		return "", err
	}
	if order.IsPaid {
		return "", fmt.Errorf("%w: order %d", models.ErrAlreadyPaid, order.ID)
	}
	if order.TotalAmount != nil && *order.TotalAmount != amount {
		log.Printf("prepare amount %s differs from order %d total %s", amount, order.ID, *order.TotalAmount)
	}
	if order.GatewayPrepareID != nil {
		return *order.GatewayPrepareID, nil
	}

	prepareID := strconv.FormatUint(uint64(order.ID), 10)
	if err := s.orderRepo.SetPrepareID(order.ID, prepareID); err != nil {
		return "", fmt.Errorf("failed to store prepare id: %w", err)
	}
	return prepareID, nil
}

// OnGatewayComplete finalizes a payment. The conditional mark-paid update
// is the single gate for all side effects: a duplicate or concurrent
// complete loses the update and gets ErrAlreadyPaid without re-running
// fiscal submission or notifications.
func (s *orderService) OnGatewayComplete(clickTransID, merchantTransID, prepareID string, amount money.Amount) (*PaymentResult, error) {
	order, err := s.orderRepo.GetByMerchantTransID(merchantTransID)
	if err != nil {
		return nil, err
	}
	if order.GatewayPrepareID == nil || *order.GatewayPrepareID != prepareID {
		return nil, fmt.Errorf("%w: prepare id %q for transaction %s", models.ErrTransactionMismatch, prepareID, merchantTransID)
	}

	won, err := s.orderRepo.MarkPaid(order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}
	if !won {
		return nil, fmt.Errorf("%w: order %d", models.ErrAlreadyPaid, order.ID)
	}
	order.IsPaid = true
	order.Status = models.OrderProcessing

	var unitPrice money.Amount
	if order.UnitPrice != nil {
		unitPrice = *order.UnitPrice
	}
	item, err := fiscal.ComputeLineItem(order.Product, order.Quantity, unitPrice)
	if err != nil {
		// Funds are captured; the order stays paid and an operator follows
		// up on the fiscal record.
		log.Printf("fiscal line item for order %d failed: %v", order.ID, err)
		s.notifier.FiscalSubmissionFailed(order, err)
		return nil, err
	}
	items := []fiscal.LineItem{item}

	if _, err := s.gateway.SubmitFiscalData(clickTransID, items, amount); err != nil {
		// Reportable, operator-retryable, never a payment failure.
		log.Printf("fiscal submission for order %d failed: %v", order.ID, err)
		s.notifier.FiscalSubmissionFailed(order, err)
	}

	s.notifier.PaymentCompleted(order, items)

	if err := s.orderRepo.UpdateStatus(order.ID, models.OrderCompleted); err != nil {
		log.Printf("failed to complete order %d: %v", order.ID, err)
	} else {
		order.Status = models.OrderCompleted
	}
	return &PaymentResult{Order: order, Items: items}, nil
}

// moveTo performs a plain status transition with table validation.
func (s *orderService) moveTo(orderID uint, to models.OrderStatus, after func(*models.Order)) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if !canTransition(order.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s for order %d", models.ErrInvalidTransition, order.Status, to, orderID)
	}
	if err := s.orderRepo.UpdateStatus(orderID, to); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	order.Status = to
	if after != nil {
		after(order)
	}
	return order, nil
}
