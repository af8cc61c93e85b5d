package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// RoleUser is the role given to every self-registered account.
const RoleUser = "user"

// Registrar creates accounts and their profiles.
type Registrar struct {
	auth     ports.AuthClient
	profiles ports.ProfileStore
	logger   ports.Logger
	now      func() time.Time
}

// NewRegistrar creates a new Registrar.
func NewRegistrar(auth ports.AuthClient, profiles ports.ProfileStore, logger ports.Logger) *Registrar {
	return &Registrar{
		auth:     auth,
		profiles: profiles,
		logger:   logger.WithComponent("signup"),
		now:      time.Now,
	}
}

// SignUp creates the account, then its profile row linked by the new
// account id. The profile is written once, only after the account exists.
func (r *Registrar) SignUp(ctx context.Context, req ports.SignUpRequest) (*ports.Account, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, pipeline.NewError(pipeline.KindValidation, "email and password are required")
	}
	if strings.TrimSpace(req.FullName) == "" {
		return nil, pipeline.NewError(pipeline.KindValidation, "full name is required")
	}

	account, err := r.auth.SignUp(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if account == nil || account.ID == "" {
		return nil, fmt.Errorf("sign up: backend returned no account")
	}

	profile := pipeline.UserProfile{
		ID:         account.ID,
		FullName:   strings.TrimSpace(req.FullName),
		Delegation: strings.TrimSpace(req.Delegation),
		Role:       RoleUser,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.profiles.CreateProfile(ctx, profile); err != nil {
		return account, pipeline.WrapError(pipeline.KindPersistence, err, "create profile for %s", account.ID)
	}
	r.logger.Debug("Profile created for %s", account.ID)
	return account, nil
}
