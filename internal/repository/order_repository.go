package repository

import (
	"errors"
	"fmt"

	"merch_shop/internal/models"
	"merch_shop/internal/money"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByClientID(clientID int64) ([]models.Order, error)
	GetByMerchantTransID(merchantTransID string) (*models.Order, error)
	GetAll() ([]models.Order, error)
	UpdateStatus(id uint, status models.OrderStatus) error
	SetPrice(id uint, unitPrice, total money.Amount, status models.OrderStatus) error
	SetTransactionID(id uint, merchantTransID string) error
	SetPaymentURL(id uint, paymentURL string, status models.OrderStatus) error
	SetPrepareID(id uint, prepareID string) error
	MarkPaid(id uint) (bool, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

func (r *orderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", models.ErrOrderNotFound, id)
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByClientID(clientID int64) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Where("client_id = ?", clientID).Order("id").Find(&orders).Error
	return orders, err
}

func (r *orderRepository) GetByMerchantTransID(merchantTransID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("merchant_trans_id = ?", merchantTransID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: transaction %s", models.ErrOrderNotFound, merchantTransID)
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetAll() ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Order("id").Find(&orders).Error
	return orders, err
}

func (r *orderRepository) UpdateStatus(id uint, status models.OrderStatus) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Update("status", status).Error
}

func (r *orderRepository) SetPrice(id uint, unitPrice, total money.Amount, status models.OrderStatus) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
		"unit_price":   unitPrice,
		"total_amount": total,
		"status":       status,
	}).Error
}

// SetTransactionID assigns the merchant transaction id. The write is
// guarded so an id already present is never overwritten.
func (r *orderRepository) SetTransactionID(id uint, merchantTransID string) error {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND merchant_trans_id IS NULL", id).
		Update("merchant_trans_id", merchantTransID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: order %d already has a transaction id", models.ErrInvalidTransition, id)
	}
	return nil
}

func (r *orderRepository) SetPaymentURL(id uint, paymentURL string, status models.OrderStatus) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
		"payment_url": paymentURL,
		"status":      status,
	}).Error
}

func (r *orderRepository) SetPrepareID(id uint, prepareID string) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Update("gateway_prepare_id", prepareID).Error
}

// MarkPaid flips is_paid exactly once via a conditional update. The
// affected-row count is the gate that keeps two concurrent complete
// callbacks from both running the post-payment side effects.
func (r *orderRepository) MarkPaid(id uint) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND is_paid = ?", id, false).
		Updates(map[string]interface{}{
			"is_paid": true,
			"status":  models.OrderProcessing,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
