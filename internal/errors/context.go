package errors

import (
	"fmt"
	"time"

	"github.com/chatvibe/console/internal/logging"
)

// Kind groups contextual errors by the part of the client that raised them.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindSessionStore  Kind = "session_store"
)

// Severity decides the log level a contextual error is reported at.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ContextualError is a local failure with enough context to show the user
// and to log. Request failures use StatusError instead.
type ContextualError struct {
	Kind        Kind
	Severity    Severity
	Component   string
	Operation   string
	Message     string
	UserMessage string
	Context     map[string]interface{}
	Cause       error
	Occurred    time.Time
}

func (e *ContextualError) Error() string {
	prefix := e.Component
	if e.Operation != "" {
		prefix += "." + e.Operation
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns the message meant for the status line.
func (e *ContextualError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// GetHints suggests what the user can do next.
func (e *ContextualError) GetHints() []string {
	switch e.Kind {
	case KindConfiguration:
		return []string{"Edit ~/.config/chatvibe/profiles.yaml"}
	case KindSessionStore:
		return []string{"Delete ~/.config/chatvibe/session.yaml and log in again"}
	}
	return nil
}

// ErrorBuilder assembles a ContextualError and logs it on Build.
type ErrorBuilder struct {
	err    *ContextualError
	logger *logging.Logger
}

// NewErrorBuilder starts a medium severity error.
func NewErrorBuilder(kind Kind, component string) *ErrorBuilder {
	return &ErrorBuilder{
		err: &ContextualError{
			Kind:      kind,
			Severity:  SeverityMedium,
			Component: component,
			Context:   make(map[string]interface{}),
		},
		logger: logging.GetGlobalLogger().WithComponent(component),
	}
}

func (eb *ErrorBuilder) WithSeverity(severity Severity) *ErrorBuilder {
	eb.err.Severity = severity
	return eb
}

func (eb *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	eb.err.Operation = operation
	return eb
}

func (eb *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	eb.err.Message = message
	return eb
}

func (eb *ErrorBuilder) WithUserMessage(userMessage string) *ErrorBuilder {
	eb.err.UserMessage = userMessage
	return eb
}

func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.err.Cause = cause
	return eb
}

// WithContext adds a key that is logged as ctx_<key>.
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.err.Context[key] = value
	return eb
}

// Build stamps the error and logs it at a level matching its severity.
func (eb *ErrorBuilder) Build() *ContextualError {
	eb.err.Occurred = time.Now()

	fields := map[string]interface{}{
		"kind":      string(eb.err.Kind),
		"operation": eb.err.Operation,
	}
	for k, v := range eb.err.Context {
		fields["ctx_"+k] = v
	}
	if eb.err.Cause != nil {
		fields["cause"] = eb.err.Cause.Error()
	}

	logger := eb.logger.WithFields(fields)
	switch eb.err.Severity {
	case SeverityHigh:
		logger.Error(eb.err.Message)
	case SeverityLow:
		logger.Info(eb.err.Message)
	default:
		logger.Warn(eb.err.Message)
	}
	return eb.err
}

func NewConfigurationError(component string) *ErrorBuilder {
	return NewErrorBuilder(KindConfiguration, component)
}

// NewSessionStoreError is used when persisted session state cannot be read
// back. The session starts logged out.
func NewSessionStoreError(component string) *ErrorBuilder {
	return NewErrorBuilder(KindSessionStore, component).WithSeverity(SeverityLow)
}

// ErrorChain collects related errors, e.g. every problem found while
// validating one profile.
type ErrorChain struct {
	errors []error
	logger *logging.Logger
}

func NewErrorChain(logger *logging.Logger) *ErrorChain {
	return &ErrorChain{logger: logger}
}

// Add appends err if it is not nil.
func (ec *ErrorChain) Add(err error) *ErrorChain {
	if err == nil {
		return ec
	}
	ec.errors = append(ec.errors, err)
	if ec.logger != nil {
		ec.logger.Debug("Error added to chain", "error", err.Error(), "chain_length", len(ec.errors))
	}
	return ec
}

func (ec *ErrorChain) HasErrors() bool {
	return len(ec.errors) > 0
}

// Err joins the chain into one error, or nil when empty.
func (ec *ErrorChain) Err() error {
	if !ec.HasErrors() {
		return nil
	}
	return Join(ec.errors...)
}
