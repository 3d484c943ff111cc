package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is not in the key/value store
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair is a single stored value. Provider credentials live under
// "<provider>_api_key" and monthly usage counters under "usage:<provider>:<yyyy-mm>".
type KeyValuePair struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeyValueStorage stores small string values such as credentials and usage counters
type KeyValueStorage interface {
	// Get retrieves a value by key, returns ErrKeyNotFound if absent
	Get(ctx context.Context, key string) (string, error)

	// Set inserts or updates a value, preserving its creation time
	Set(ctx context.Context, key string, value string, description string) error

	// Delete removes a key, returns ErrKeyNotFound if absent
	Delete(ctx context.Context, key string) error

	// ListByPrefix returns pairs whose keys start with prefix, ordered by key
	ListByPrefix(ctx context.Context, prefix string) ([]KeyValuePair, error)
}
