// Package session holds the state of one poster editing session.
//
// A Session is created explicitly, initialized against the auth backend and
// torn down when the user leaves the editor. It owns the form values, the
// effective dimensions and the export state machine; the pipeline stages
// receive it instead of reaching for global state.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// ErrNotAuthenticated is returned when no account is signed in.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrClosed is returned by operations on a torn-down session.
var ErrClosed = errors.New("session closed")

var transitions = map[pipeline.Mode][]pipeline.Mode{
	pipeline.ModeEdit:       {pipeline.ModePreview},
	pipeline.ModePreview:    {pipeline.ModeEdit, pipeline.ModeGenerating},
	pipeline.ModeGenerating: {pipeline.ModeDone, pipeline.ModePreview},
	pipeline.ModeDone:       {pipeline.ModePreview, pipeline.ModeEdit},
}

// Session is an explicitly constructed editing context.
type Session struct {
	auth   ports.AuthClient
	logger ports.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	account     *ports.Account
	template    *pipeline.TemplateDefinition
	values      pipeline.FormState
	dims        pipeline.Dimensions
	dimSource   pipeline.DimensionSource
	mode        pipeline.Mode
	unsubscribe func()
	closed      bool
}

// New creates an uninitialized session.
func New(auth ports.AuthClient, logger ports.Logger) *Session {
	return &Session{
		auth:   auth,
		logger: logger.WithComponent("session"),
		mode:   pipeline.ModeEdit,
		values: pipeline.FormState{},
	}
}

// Initialize binds the session to the signed-in account and follows later
// sign-outs and account switches. The session lives until Teardown or until
// parent is done.
func (s *Session) Initialize(parent context.Context) error {
	account, err := s.auth.CurrentAccount(parent)
	if err != nil {
		return fmt.Errorf("get current account: %w", err)
	}
	if account == nil {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.ctx, s.cancel = context.WithCancel(parent)
	s.account = account
	s.unsubscribe = s.auth.Subscribe(s.onAuthEvent)
	s.logger.Debug("Session started for %s", account.ID)
	return nil
}

func (s *Session) onAuthEvent(ev ports.AuthEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.account = ev.Account
	if ev.Account == nil {
		s.logger.Debug("Signed out")
	}
}

// Teardown ends the session. In-flight probes observe Context being done and
// discard their results. Teardown is idempotent.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.values = pipeline.FormState{}
}

// Context is done once the session has been torn down.
func (s *Session) Context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ctx == nil {
		// Never initialized: behave as already ended.
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.ctx
}

// Account returns the signed-in account or nil.
func (s *Session) Account() *ports.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// UserID returns the signed-in account id, or "" after sign-out.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return ""
	}
	return s.account.ID
}

// LoadTemplate starts editing tpl: the form is seeded from field defaults,
// the dimensions are set to the load-time resolution and the mode resets to edit.
func (s *Session) LoadTemplate(tpl pipeline.TemplateDefinition, dims pipeline.DimensionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	values := make(pipeline.FormState, len(tpl.FieldSchema))
	for _, f := range tpl.FieldSchema {
		values[f.Name] = f.DefaultString()
	}
	s.template = &tpl
	s.values = values
	s.dims = dims.Dimensions
	s.dimSource = dims.Source
	s.mode = pipeline.ModeEdit
	return nil
}

// Template returns the template being edited, or nil.
func (s *Session) Template() *pipeline.TemplateDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.template
}

// Values returns a snapshot of the form state.
func (s *Session) Values() pipeline.FormState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Clone()
}

// SetValue records a user edit. Derived fields are read-only and unknown
// names are rejected. A select field only takes one of its options, or empty.
func (s *Session) SetValue(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.template == nil {
		return pipeline.NewError(pipeline.KindValidation, "no template loaded")
	}
	for _, f := range s.template.FieldSchema {
		if f.Name != name {
			continue
		}
		if f.IsDerived() || f.ReadOnly {
			return pipeline.NewError(pipeline.KindValidation, "field %q is read-only", name)
		}
		if f.MaxLength > 0 && len([]rune(value)) > f.MaxLength {
			return pipeline.NewError(pipeline.KindValidation, "field %q exceeds %d characters", name, f.MaxLength)
		}
		if f.Type == pipeline.FieldSelect && value != "" && len(f.Options) > 0 && !slices.Contains(f.Options, value) {
			return pipeline.NewError(pipeline.KindValidation, "field %q does not offer %q", name, value)
		}
		s.values[name] = value
		return nil
	}
	return pipeline.NewError(pipeline.KindValidation, "unknown field %q", name)
}

// ApplyUpdates merges a batch of derived-field updates in one step, so
// readers see either none or all of them.
func (s *Session) ApplyUpdates(updates pipeline.FormState) {
	if len(updates) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	next := s.values.Clone()
	for k, v := range updates {
		next[k] = v
	}
	s.values = next
}

// MissingRequired returns the required fields that are still empty, in schema order.
func (s *Session) MissingRequired() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.template == nil {
		return nil
	}
	var missing []string
	for _, f := range s.template.FieldSchema {
		if f.Required && s.values[f.Name] == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// Dimensions returns the effective dimensions.
func (s *Session) Dimensions() pipeline.Dimensions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// DimensionSource returns where the effective dimensions came from.
func (s *Session) DimensionSource() pipeline.DimensionSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimSource
}

// SetDimensionsIfChanged overwrites the effective dimensions unless they
// already equal d. It ignores non-positive values and closed sessions.
func (s *Session) SetDimensionsIfChanged(d pipeline.Dimensions, source pipeline.DimensionSource) bool {
	if !d.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.dims == d {
		return false
	}
	s.dims = d
	s.dimSource = source
	return true
}

// Mode returns the current mode.
func (s *Session) Mode() pipeline.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// InPreview reports whether the preview is showing.
func (s *Session) InPreview() bool {
	return s.Mode() == pipeline.ModePreview
}

// Transition moves from one mode to another if the session is in from and
// the move is allowed.
func (s *Session) Transition(from, to pipeline.Mode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.mode != from {
		return false
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			s.mode = to
			return true
		}
	}
	return false
}

// Preview switches to the preview from edit or done.
func (s *Session) Preview() error {
	if s.Transition(pipeline.ModeEdit, pipeline.ModePreview) || s.Transition(pipeline.ModeDone, pipeline.ModePreview) {
		return nil
	}
	return fmt.Errorf("cannot preview from %s", s.Mode())
}

// Edit switches back to the form from preview or done.
func (s *Session) Edit() error {
	if s.Transition(pipeline.ModePreview, pipeline.ModeEdit) || s.Transition(pipeline.ModeDone, pipeline.ModeEdit) {
		return nil
	}
	return fmt.Errorf("cannot edit from %s", s.Mode())
}
