package repository

import (
	"errors"
	"fmt"

	"merch_shop/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClientRepository interface {
	GetByID(id int64) (*models.Client, error)
	Upsert(client *models.Client) error
	Delete(id int64) error
}

type clientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) GetByID(id int64) (*models.Client, error) {
	var client models.Client
	err := r.db.First(&client, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", models.ErrClientNotFound, id)
		}
		return nil, err
	}
	return &client, nil
}

// Upsert registers a client or refreshes their profile on re-registration.
func (r *clientRepository) Upsert(client *models.Client) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "contact", "name", "updated_at"}),
	}).Create(client).Error
}

// Delete removes a client row. Only explicit admin action reaches this.
func (r *clientRepository) Delete(id int64) error {
	return r.db.Delete(&models.Client{}, "id = ?", id).Error
}
