package ports

import "context"

// Account is an authenticated identity as seen by the backend.
type Account struct {
	ID    string
	Email string
}

// SignUpRequest carries the fields collected on sign-up.
type SignUpRequest struct {
	Email      string
	Password   string
	FullName   string
	Delegation string
}

// AuthEvent reports a change of the current session.
type AuthEvent struct {
	Account *Account // nil after sign-out
}

// AuthClient is the backend's session and account API.
type AuthClient interface {
	// SignUp creates an account and returns it.
	SignUp(ctx context.Context, req SignUpRequest) (*Account, error)

	// SignIn authenticates with email and password.
	SignIn(ctx context.Context, email, password string) (*Account, error)

	// SignOut ends the current session.
	SignOut(ctx context.Context) error

	// CurrentAccount returns the signed-in account, or nil when there is none.
	CurrentAccount(ctx context.Context) (*Account, error)

	// Subscribe registers fn for session changes and returns a function that removes it.
	Subscribe(fn func(AuthEvent)) (unsubscribe func())
}
