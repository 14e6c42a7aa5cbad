// Package errs defines the closed error taxonomy shared by the transaction
// core. Every failure that crosses a component boundary is classified into
// exactly one ClassifiedError; no other component formats errors for users.
package errs

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Kind identifies the classification of a failure.
type Kind string

const (
	KindNetwork           Kind = "network"
	KindValidation        Kind = "validation"
	KindPermission        Kind = "permission"
	KindStockInsufficient Kind = "stock_insufficient"
	KindConflict          Kind = "conflict"
	KindEmptyCart         Kind = "empty_cart"
	KindEmptyHistory      Kind = "empty_history"
	KindUnknown           Kind = "unknown"
)

// Severity grades how a failure should be presented.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// NetworkType is a diagnostic tag for network failures. It is never used for
// control flow; retry decisions look at Retryable only.
type NetworkType string

const (
	NetworkTimeout   NetworkType = "timeout"
	NetworkAbort     NetworkType = "abort"
	NetworkOffline   NetworkType = "offline"
	NetworkTransport NetworkType = "transport"
)

// Shortfall describes one cart line that exceeds available stock.
type Shortfall struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// ClassifiedError is the single error shape produced by the taxonomy.
// Immutable once constructed.
type ClassifiedError struct {
	Kind        Kind
	Message     string
	Retryable   bool
	Severity    Severity
	NetworkType NetworkType
	FieldErrors map[string]string
	Shortfalls  []Shortfall
	UITitle     string
	UIMessage   string
	At          time.Time

	cause error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the raw failure this classification was derived from.
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// LogValue is the single log projection for classified errors. Components log
// the error as a value; nothing else re-formats it.
func (e *ClassifiedError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", string(e.Kind)),
		slog.String("message", e.Message),
		slog.Bool("retryable", e.Retryable),
		slog.String("severity", string(e.Severity)),
		slog.Time("at", e.At),
	}
	if e.NetworkType != "" {
		attrs = append(attrs, slog.String("network_type", string(e.NetworkType)))
	}
	if len(e.FieldErrors) > 0 {
		attrs = append(attrs, slog.Any("fields", e.FieldErrors))
	}
	if len(e.Shortfalls) > 0 {
		attrs = append(attrs, slog.Any("shortfalls", e.Shortfalls))
	}
	return slog.GroupValue(attrs...)
}

// FromTransportFailure classifies a raw transport failure as a retryable
// network error. The failure text is inspected to tag timeouts and aborts,
// for diagnostics only.
func FromTransportFailure(raw error) *ClassifiedError {
	nt := NetworkTransport
	if raw != nil {
		s := strings.ToLower(raw.Error())
		switch {
		case strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded"):
			nt = NetworkTimeout
		case strings.Contains(s, "abort") || strings.Contains(s, "canceled") || strings.Contains(s, "cancelled"):
			nt = NetworkAbort
		case strings.Contains(s, "no such host") || strings.Contains(s, "network is unreachable"):
			nt = NetworkOffline
		}
	}

	return &ClassifiedError{
		Kind:        KindNetwork,
		Message:     "transport failure",
		Retryable:   true,
		Severity:    SeverityWarning,
		NetworkType: nt,
		UITitle:     "Connection problem",
		UIMessage:   "We couldn't reach the server. Check your connection and try again.",
		At:          time.Now(),
		cause:       raw,
	}
}

// FromOffline classifies an explicit offline signal.
func FromOffline() *ClassifiedError {
	return &ClassifiedError{
		Kind:        KindNetwork,
		Message:     "no network connectivity",
		Retryable:   true,
		Severity:    SeverityWarning,
		NetworkType: NetworkOffline,
		UITitle:     "You're offline",
		UIMessage:   "No network connection. Changes will not be saved until you're back online.",
		At:          time.Now(),
	}
}

// FromTimeout classifies a request that exceeded its deadline.
func FromTimeout(elapsed time.Duration) *ClassifiedError {
	msg := "request timed out"
	if elapsed > 0 {
		msg = fmt.Sprintf("request timed out after %s", elapsed)
	}

	return &ClassifiedError{
		Kind:        KindNetwork,
		Message:     msg,
		Retryable:   true,
		Severity:    SeverityWarning,
		NetworkType: NetworkTimeout,
		UITitle:     "Connection problem",
		UIMessage:   "The server took too long to respond. Try again.",
		At:          time.Now(),
	}
}

// FromAbort classifies an externally cancelled request. Not retryable: the
// caller asked to stop.
func FromAbort() *ClassifiedError {
	return &ClassifiedError{
		Kind:        KindNetwork,
		Message:     "request aborted",
		Retryable:   false,
		Severity:    SeverityInfo,
		NetworkType: NetworkAbort,
		UITitle:     "Cancelled",
		UIMessage:   "The operation was cancelled.",
		At:          time.Now(),
	}
}

// FromValidation classifies malformed input. Never retryable; recovered by
// re-prompting the operator.
func FromValidation(fieldErrors map[string]string) *ClassifiedError {
	return &ClassifiedError{
		Kind:        KindValidation,
		Message:     fmt.Sprintf("validation failed for %d field(s)", len(fieldErrors)),
		Retryable:   false,
		Severity:    SeverityWarning,
		FieldErrors: fieldErrors,
		UITitle:     "Invalid input",
		UIMessage:   "Some fields need attention before continuing.",
		At:          time.Now(),
	}
}

// FromPermissionDenial classifies a missing permission for an action.
func FromPermissionDenial(action string) *ClassifiedError {
	return &ClassifiedError{
		Kind:      KindPermission,
		Message:   fmt.Sprintf("permission denied for %q", action),
		Retryable: false,
		Severity:  SeverityError,
		UITitle:   "Not allowed",
		UIMessage: "You don't have permission to perform this action.",
		At:        time.Now(),
	}
}

// FromStockShortfall classifies cart lines that exceed available stock.
// The offending lines travel with the error so the UI can point at them.
func FromStockShortfall(shortfalls []Shortfall) *ClassifiedError {
	return &ClassifiedError{
		Kind:       KindStockInsufficient,
		Message:    fmt.Sprintf("insufficient stock for %d line(s)", len(shortfalls)),
		Retryable:  false,
		Severity:   SeverityWarning,
		Shortfalls: shortfalls,
		UITitle:    "Not enough stock",
		UIMessage:  "One or more items exceed the available stock.",
		At:         time.Now(),
	}
}

// FromConflict classifies a second finalize attempted while one is in flight.
func FromConflict(op string) *ClassifiedError {
	return &ClassifiedError{
		Kind:      KindConflict,
		Message:   fmt.Sprintf("%s already in progress", op),
		Retryable: false,
		Severity:  SeverityWarning,
		UITitle:   "Sale already in progress",
		UIMessage: "This cart is already being finalized. Wait for it to finish.",
		At:        time.Now(),
	}
}

// EmptyCart classifies a finalize or validation attempt on an empty cart.
// Local precondition failure; never reaches the network layer.
func EmptyCart() *ClassifiedError {
	return &ClassifiedError{
		Kind:      KindEmptyCart,
		Message:   "cart is empty",
		Retryable: false,
		Severity:  SeverityInfo,
		UITitle:   "Cart is empty",
		UIMessage: "Add at least one item before finalizing.",
		At:        time.Now(),
	}
}

// EmptyHistory classifies an undo attempt with no recorded commands.
func EmptyHistory() *ClassifiedError {
	return &ClassifiedError{
		Kind:      KindEmptyHistory,
		Message:   "no commands to undo",
		Retryable: false,
		Severity:  SeverityInfo,
		UITitle:   "Nothing to undo",
		UIMessage: "There are no cart changes to undo.",
		At:        time.Now(),
	}
}

// FromUnknown classifies a failure no other factory recognizes.
func FromUnknown(raw error) *ClassifiedError {
	msg := "unexpected failure"
	if raw != nil {
		msg = raw.Error()
	}

	return &ClassifiedError{
		Kind:      KindUnknown,
		Message:   msg,
		Retryable: false,
		Severity:  SeverityError,
		UITitle:   "Unexpected error",
		UIMessage: "Something went wrong. Please try again.",
		At:        time.Now(),
		cause:     raw,
	}
}
