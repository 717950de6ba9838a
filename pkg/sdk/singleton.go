package sdk

import (
	"context"
	"errors"
	"sync"
)

// ErrNotInitialized is returned by the package-level helpers before Init
// has been called.
var ErrNotInitialized = errors.New("sdk: not initialized, call Init first")

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Init configures the package-level default client. Calling Init again
// replaces the previous client without closing it; callers that re-init
// should Close first.
func Init(cfg Config) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}

	defaultMu.Lock()
	defaultClient = c
	defaultMu.Unlock()
	return c, nil
}

// Default returns the package-level client, or nil before Init.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultClient
}

// Log records an entry through the default client.
func Log(entry *Entry) error {
	c := Default()
	if c == nil {
		return ErrNotInitialized
	}
	return c.Log(entry)
}

// Wrap instruments fn through the default client. Before Init it calls fn
// directly so application code keeps working while logging is off.
func Wrap(ctx context.Context, opts WrapOptions, fn func(ctx context.Context) (any, error)) (any, error) {
	c := Default()
	if c == nil {
		return fn(ctx)
	}
	return c.Wrap(ctx, opts, fn)
}

// Flush flushes the default client. A no-op before Init.
func Flush(ctx context.Context) {
	if c := Default(); c != nil {
		c.Flush(ctx)
	}
}

// Close closes the default client and clears it.
func Close(ctx context.Context) {
	defaultMu.Lock()
	c := defaultClient
	defaultClient = nil
	defaultMu.Unlock()

	if c != nil {
		c.Close(ctx)
	}
}
