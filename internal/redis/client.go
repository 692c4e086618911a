package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// ErrSessionNotFound is returned when a chat has no active session.
var ErrSessionNotFound = errors.New("session not found")

// IntakeStep identifies where a chat currently is in a conversation flow.
type IntakeStep string

const (
	StepContact         IntakeStep = "contact"
	StepName            IntakeStep = "name"
	StepProduct         IntakeStep = "product"
	StepQuantity        IntakeStep = "quantity"
	StepDesignText      IntakeStep = "design_text"
	StepDesignPhoto     IntakeStep = "design_photo"
	StepLocation        IntakeStep = "location"
	StepDeliveryComment IntakeStep = "delivery_comment"
	// StepAdminPrice is the admin-side state between approving an order and
	// typing its unit price.
	StepAdminPrice IntakeStep = "admin_price"
)

// IntakeSession holds the in-progress order draft for one chat.
type IntakeSession struct {
	ChatID          int64      `json:"chat_id"`
	Step            IntakeStep `json:"step"`
	Contact         string     `json:"contact"`
	Name            string     `json:"name"`
	Product         string     `json:"product"`
	Quantity        int        `json:"quantity"`
	DesignText      string     `json:"design_text"`
	DesignAssetRef  string     `json:"design_asset_ref"`
	LocationLat     *float64   `json:"location_lat"`
	LocationLon     *float64   `json:"location_lon"`
	DeliveryComment string     `json:"delivery_comment"`
	// PendingOrderID carries the order an admin is pricing.
	PendingOrderID uint      `json:"pending_order_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func Initialize(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("intake:%d", chatID)
}

func (c *Client) SetSession(session *IntakeSession, ttl time.Duration) error {
	ctx := context.Background()
	session.UpdatedAt = time.Now()
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return c.rdb.Set(ctx, sessionKey(session.ChatID), jsonData, ttl).Err()
}

func (c *Client) GetSession(chatID int64) (*IntakeSession, error) {
	ctx := context.Background()
	val, err := c.rdb.Get(ctx, sessionKey(chatID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session IntakeSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (c *Client) DeleteSession(chatID int64) error {
	ctx := context.Background()
	return c.rdb.Del(ctx, sessionKey(chatID)).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
