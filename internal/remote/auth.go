package remote

import (
	"context"
	"errors"
	"sync"
)

// TokenSource supplies bearer tokens. Refresh is called once after the
// server answers 401 and must return a token different from the rejected
// one, or an error.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a fixed token. Refresh always fails.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

func (t StaticToken) Refresh(context.Context) (string, error) {
	return "", errors.New("static token cannot be refreshed")
}

// RefreshingToken caches a token and obtains new ones through fetch.
// Concurrent refreshes are collapsed into one call.
type RefreshingToken struct {
	fetch func(ctx context.Context) (string, error)

	mu         sync.Mutex
	token      string
	refreshing chan struct{}
	lastErr    error
}

// NewRefreshingToken starts from initial (may be empty) and uses fetch to
// get replacements.
func NewRefreshingToken(initial string, fetch func(ctx context.Context) (string, error)) *RefreshingToken {
	return &RefreshingToken{token: initial, fetch: fetch}
}

func (t *RefreshingToken) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	tok := t.token
	t.mu.Unlock()
	if tok != "" {
		return tok, nil
	}
	return t.Refresh(ctx)
}

func (t *RefreshingToken) Refresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	if wait := t.refreshing; wait != nil {
		t.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.token, t.lastErr
	}
	done := make(chan struct{})
	t.refreshing = done
	t.mu.Unlock()

	tok, err := t.fetch(ctx)

	t.mu.Lock()
	if err == nil {
		t.token = tok
	}
	t.lastErr = err
	t.refreshing = nil
	t.mu.Unlock()
	close(done)

	return tok, err
}
