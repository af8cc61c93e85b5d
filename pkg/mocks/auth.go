package mocks

import (
	"context"
	"sync"

	"github.com/user/postergen/pkg/ports"
)

// AuthClient is a mock implementation of ports.AuthClient.
// Emit delivers an event to every current subscriber.
type AuthClient struct {
	mu sync.Mutex

	Account *ports.Account

	SignUpFunc func(ctx context.Context, req ports.SignUpRequest) (*ports.Account, error)
	SignInFunc func(ctx context.Context, email, password string) (*ports.Account, error)

	subscribers map[int]func(ports.AuthEvent)
	nextID      int
	SignUpCalls int
}

func (m *AuthClient) SignUp(ctx context.Context, req ports.SignUpRequest) (*ports.Account, error) {
	m.mu.Lock()
	m.SignUpCalls++
	m.mu.Unlock()
	if m.SignUpFunc != nil {
		return m.SignUpFunc(ctx, req)
	}
	return &ports.Account{ID: "account-" + req.Email, Email: req.Email}, nil
}

func (m *AuthClient) SignIn(ctx context.Context, email, password string) (*ports.Account, error) {
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, email, password)
	}
	acc := &ports.Account{ID: "account-" + email, Email: email}
	m.mu.Lock()
	m.Account = acc
	m.mu.Unlock()
	return acc, nil
}

func (m *AuthClient) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.Account = nil
	m.mu.Unlock()
	m.Emit(ports.AuthEvent{})
	return nil
}

func (m *AuthClient) CurrentAccount(ctx context.Context) (*ports.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Account, nil
}

func (m *AuthClient) Subscribe(fn func(ports.AuthEvent)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribers == nil {
		m.subscribers = map[int]func(ports.AuthEvent){}
	}
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Emit calls every subscriber with ev.
func (m *AuthClient) Emit(ev ports.AuthEvent) {
	m.mu.Lock()
	fns := make([]func(ports.AuthEvent), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Subscribers returns the number of active subscriptions.
func (m *AuthClient) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

var _ ports.AuthClient = (*AuthClient)(nil)
