package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/RishiVykunta/e-commerce/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/mark_verified.lua
var markVerifiedScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

// ErrIntentNotFound is returned for unknown or expired payment intents.
var ErrIntentNotFound = errors.New("payment intent not found")

type Client struct {
	rdb            *redis.Client
	verifiedScript *redis.Script
	releaseScript  *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return Wrap(rdb), nil
}

// Wrap builds a Client around an existing connection.
func Wrap(rdb *redis.Client) *Client {
	return &Client{
		rdb:            rdb,
		verifiedScript: redis.NewScript(markVerifiedScript),
		releaseScript:  redis.NewScript(releaseLockScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks that Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func intentKey(intentID string) string {
	return fmt.Sprintf("payment_intent:%s", intentID)
}

// SaveIntent records a gateway payment intent for ttl
func (c *Client) SaveIntent(ctx context.Context, intent *models.PaymentIntent, ttl time.Duration) error {
	key := intentKey(intent.IntentID)

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"user_id", intent.UserID,
		"amount", intent.Amount,
		"currency", intent.Currency,
		"receipt", intent.Receipt,
		"verified", "0",
		"payment_id", "",
		"created_at", intent.CreatedAt.Unix(),
	)
	pipe.Expire(ctx, key, ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// GetIntent loads a previously saved payment intent
func (c *Client) GetIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	result, err := c.rdb.HGetAll(ctx, intentKey(intentID)).Result()
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%s: %w", intentID, ErrIntentNotFound)
	}

	return parseIntent(intentID, result), nil
}

func parseIntent(intentID string, fields map[string]string) *models.PaymentIntent {
	userID, _ := strconv.ParseInt(fields["user_id"], 10, 64)
	amount, _ := strconv.ParseInt(fields["amount"], 10, 64)
	created, _ := strconv.ParseInt(fields["created_at"], 10, 64)

	return &models.PaymentIntent{
		IntentID:  intentID,
		UserID:    userID,
		Amount:    amount,
		Currency:  fields["currency"],
		Receipt:   fields["receipt"],
		Verified:  fields["verified"] == "1",
		PaymentID: fields["payment_id"],
		CreatedAt: time.Unix(created, 0),
	}
}

// MarkIntentVerified atomically flags an intent as paid, keeping its TTL
func (c *Client) MarkIntentVerified(ctx context.Context, intentID, paymentID string) error {
	result, err := c.verifiedScript.Run(ctx, c.rdb, []string{intentKey(intentID)}, paymentID).Result()
	if err != nil {
		return fmt.Errorf("mark verified script failed: %w", err)
	}

	updated, ok := result.(int64)
	if !ok {
		return fmt.Errorf("unexpected script result type")
	}
	if updated == 0 {
		return fmt.Errorf("%s: %w", intentID, ErrIntentNotFound)
	}
	return nil
}

// AcquireLock acquires a short-lived lock owned by token
func (c *Client) AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
}

// ReleaseLock releases a lock if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Result()
	return err
}
