package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/user/postergen/pkg/ports"
)

// Errors returned by Auth and Store.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrProfileExists      = errors.New("profile already exists")
)

type account struct {
	ports.Account
	password string
}

// Auth is a local account directory implementing ports.AuthClient.
type Auth struct {
	mu          sync.Mutex
	accounts    map[string]account // by email
	current     *ports.Account
	subscribers map[int]func(ports.AuthEvent)
	nextSub     int
}

// NewAuth creates an empty directory with nobody signed in.
func NewAuth() *Auth {
	return &Auth{
		accounts:    make(map[string]account),
		subscribers: make(map[int]func(ports.AuthEvent)),
	}
}

// SignUp registers a new account and signs it in.
func (a *Auth) SignUp(ctx context.Context, req ports.SignUpRequest) (*ports.Account, error) {
	a.mu.Lock()
	if _, ok := a.accounts[req.Email]; ok {
		a.mu.Unlock()
		return nil, ErrEmailTaken
	}
	acc := account{Account: ports.Account{ID: uuid.NewString(), Email: req.Email}, password: req.Password}
	a.accounts[req.Email] = acc
	a.mu.Unlock()

	return a.setCurrent(&acc.Account), nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*ports.Account, error) {
	a.mu.Lock()
	acc, ok := a.accounts[email]
	a.mu.Unlock()
	if !ok || acc.password != password {
		return nil, ErrInvalidCredentials
	}
	return a.setCurrent(&acc.Account), nil
}

func (a *Auth) SignOut(ctx context.Context) error {
	a.setCurrent(nil)
	return nil
}

func (a *Auth) CurrentAccount(ctx context.Context) (*ports.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil, nil
	}
	acc := *a.current
	return &acc, nil
}

func (a *Auth) Subscribe(fn func(ports.AuthEvent)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextSub
	a.nextSub++
	a.subscribers[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subscribers, id)
	}
}

// Impersonate signs in as an existing account id without a password. The
// CLI uses it to act on behalf of the configured user.
func (a *Auth) Impersonate(id string) *ports.Account {
	return a.setCurrent(&ports.Account{ID: id})
}

// setCurrent replaces the signed-in account and notifies subscribers
// outside the lock.
func (a *Auth) setCurrent(acc *ports.Account) *ports.Account {
	a.mu.Lock()
	a.current = acc
	fns := make([]func(ports.AuthEvent), 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	var out *ports.Account
	if acc != nil {
		c := *acc
		out = &c
	}
	for _, fn := range fns {
		fn(ports.AuthEvent{Account: out})
	}
	return out
}

var _ ports.AuthClient = (*Auth)(nil)
