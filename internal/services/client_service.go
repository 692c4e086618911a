package services

import (
	"fmt"
	"strings"

	"merch_shop/internal/models"
	"merch_shop/internal/repository"
)

type ClientService interface {
	Register(id int64, username, contact, name string) (*models.Client, error)
	GetClient(id int64) (*models.Client, error)
	IsRegistered(id int64) bool
	Unregister(id int64) error
}

type clientService struct {
	clientRepo repository.ClientRepository
}

func NewClientService(clientRepo repository.ClientRepository) ClientService {
	return &clientService{clientRepo: clientRepo}
}

// Register upserts a client profile; re-registration refreshes it.
func (s *clientService) Register(id int64, username, contact, name string) (*models.Client, error) {
	contact = strings.TrimSpace(contact)
	name = strings.TrimSpace(name)
	if contact == "" {
		return nil, fmt.Errorf("%w: contact is required", models.ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrInvalidInput)
	}

	client := &models.Client{
		ID:       id,
		Username: username,
		Contact:  contact,
		Name:     name,
	}
	if err := s.clientRepo.Upsert(client); err != nil {
		return nil, fmt.Errorf("failed to register client: %w", err)
	}
	return client, nil
}

func (s *clientService) GetClient(id int64) (*models.Client, error) {
	return s.clientRepo.GetByID(id)
}

func (s *clientService) IsRegistered(id int64) bool {
	_, err := s.clientRepo.GetByID(id)
	return err == nil
}

// Unregister removes a client profile. Their orders stay for bookkeeping.
func (s *clientService) Unregister(id int64) error {
	if _, err := s.clientRepo.GetByID(id); err != nil {
		return err
	}
	return s.clientRepo.Delete(id)
}
