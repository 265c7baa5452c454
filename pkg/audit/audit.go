package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrEventValidation = errors.New("audit event validation failed")

// Result represents the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Event is a single audit trail entry.
type Event struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Result     Result         `json:"result"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate checks the event has all required fields.
func (e *Event) Validate() error {
	if e.Action == "" {
		return errors.Join(ErrEventValidation, errors.New("action is required"))
	}
	return nil
}

// EventOption applies configuration to an Event during creation.
type EventOption func(*Event)

// WithTenant sets the tenant the event belongs to.
func WithTenant(tenantID string) EventOption {
	return func(e *Event) { e.TenantID = tenantID }
}

// WithResource sets the resource type and ID.
func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

// WithMetadata adds one metadata key to the event.
func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// WithResult overrides the event result.
func WithResult(result Result) EventOption {
	return func(e *Event) { e.Result = result }
}

// Storage persists audit events.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// Logger writes audit events.
type Logger interface {
	// Log records a successful action.
	Log(ctx context.Context, action string, opts ...EventOption) error
	// LogError records a failed action.
	LogError(ctx context.Context, action string, err error, opts ...EventOption) error
}

type logger struct {
	storage Storage
	now     func() time.Time
}

// Option configures the logger.
type Option func(*logger)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *logger) { l.now = now }
}

// NewLogger creates an audit logger on the given storage. Panics if storage
// is nil.
func NewLogger(storage Storage, opts ...Option) Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &logger{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event := Event{
		ID:        uuid.New().String(),
		Action:    action,
		Result:    ResultSuccess,
		CreatedAt: l.now(),
	}
	for _, opt := range opts {
		opt(&event)
	}
	if err := event.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}

func (l *logger) LogError(ctx context.Context, action string, cause error, opts ...EventOption) error {
	event := Event{
		ID:        uuid.New().String(),
		Action:    action,
		Result:    ResultError,
		CreatedAt: l.now(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	for _, opt := range opts {
		opt(&event)
	}
	if err := event.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}
