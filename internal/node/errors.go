package node

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/helix/internal/change"
)

// Code categorizes propagation errors.
type Code string

const (
	// CodeInvalidPath indicates a mutation path that does not resolve under
	// its kind (Remove at a missing key, Insert at an existing one).
	CodeInvalidPath Code = "INVALID_PATH"

	// CodeTypeConflict indicates a proposed value whose shape is
	// incompatible with the existing structure at the path.
	CodeTypeConflict Code = "TYPE_CONFLICT"

	// CodeArgument indicates a malformed selector, handler, or edit request
	// at registration time.
	CodeArgument Code = "ARGUMENT"

	// CodeCycleDetected indicates a composite link that would make the
	// upstream graph cyclic.
	CodeCycleDetected Code = "CYCLE_DETECTED"

	// CodeRejectedEdit indicates an upstream master refused a forwarded
	// edit request.
	CodeRejectedEdit Code = "REJECTED_EDIT"
)

// Error is a propagation error with structured fields for diagnostics.
// Mutation errors are all-or-nothing: when one is returned, canonical data
// is unchanged.
type Error struct {
	Code    Code
	Message string

	// Node identifies the node the failing call was made against.
	Node string

	// Path is the mutation or link path involved, when there is one.
	Path change.Path

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Path) > 0 && e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s, path=%s)", e.Code, e.Message, e.Node, e.Path)
	}
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, node string, path change.Path, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Node:    node,
		Path:    path.Clone(),
	}
}

// hasCode reports whether any coded error in err's chain carries the given
// code. A REJECTED_EDIT wrapping an INVALID_PATH answers true for both, so
// callers can match the refusal or its upstream cause.
func hasCode(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsInvalidPath reports whether err is an invalid-path mutation failure.
func IsInvalidPath(err error) bool { return hasCode(err, CodeInvalidPath) }

// IsTypeConflict reports whether err is a shape-conflict mutation failure.
func IsTypeConflict(err error) bool { return hasCode(err, CodeTypeConflict) }

// IsArgument reports whether err is a malformed-argument failure.
func IsArgument(err error) bool { return hasCode(err, CodeArgument) }

// IsCycleDetected reports whether err is a rejected cyclic link.
func IsCycleDetected(err error) bool { return hasCode(err, CodeCycleDetected) }

// IsRejectedEdit reports whether err is an upstream edit rejection.
func IsRejectedEdit(err error) bool { return hasCode(err, CodeRejectedEdit) }

// SubscriberFailure records one subscriber whose delivery failed during a
// broadcast. The remaining subscribers in that broadcast were still
// notified.
type SubscriberFailure struct {
	// SubscriptionID is the failing subscription's registration id.
	SubscriptionID int64

	// Err is what the subscriber's projector or handler failed with.
	Err error
}

// DeliveryError aggregates per-subscriber delivery failures for one
// broadcast. The mutation itself succeeded and canonical data is committed;
// an affected subscriber can recover by re-linking for a fresh snapshot.
type DeliveryError struct {
	// Event is the committed event whose delivery partially failed.
	Event change.Event

	// Failures lists the subscribers that failed, in registration order.
	Failures []SubscriberFailure
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = fmt.Sprintf("%d", f.SubscriptionID)
	}
	return fmt.Sprintf("delivery failed for %d subscriber(s) [%s] of event seq=%d from %s (mutation committed)",
		len(e.Failures), strings.Join(ids, ","), e.Event.Seq, e.Event.Origin)
}

// IsDelivery reports whether err is a partial delivery failure. The
// mutation behind it is committed.
func IsDelivery(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}
