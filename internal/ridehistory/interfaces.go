package ridehistory

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned by a Backend when the key holds nothing
var ErrBlobNotFound = errors.New("history blob not found")

// Backend is the durable key-value store holding the serialized history
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
