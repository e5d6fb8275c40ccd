// Package store persists client-side state (session token, cart lines,
// shipping address draft) as JSON text under well-known keys.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Persisted keys.
const (
	KeyToken           = "token"
	KeyCartItems       = "cartItems"
	KeyShippingAddress = "shippingAddress"
)

var (
	ErrNotFound  = errors.New("state key not found")
	ErrMalformed = errors.New("malformed persisted state")
)

// StateStore is a durable key-value store scoped to one client.
type StateStore interface {
	// Get returns ErrNotFound when the key was never written or was deleted
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte) error

	// Delete is a no-op for absent keys
	Delete(ctx context.Context, key string) error

	Close() error
}

// LoadJSON decodes the value stored under key into v. It returns ErrNotFound
// for absent keys and an error wrapping ErrMalformed when the stored text
// does not decode.
func LoadJSON(ctx context.Context, s StateStore, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: key %s: %v", ErrMalformed, key, err)
	}
	return nil
}

func SaveJSON(ctx context.Context, s StateStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	if err := s.Set(ctx, key, data); err != nil {
		return fmt.Errorf("persist %s failed: %w", key, err)
	}
	return nil
}
