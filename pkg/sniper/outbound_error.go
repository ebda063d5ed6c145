package sniper

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OutboundOperation names the REST call that failed.
type OutboundOperation string

// REST operations issued by the account.
const (
	OutboundOperationSendMessage   OutboundOperation = "send_message"
	OutboundOperationEditMessage   OutboundOperation = "edit_message"
	OutboundOperationDeleteMessage OutboundOperation = "delete_message"
	OutboundOperationListMessages  OutboundOperation = "list_messages"
	OutboundOperationGetUser       OutboundOperation = "get_user"
	OutboundOperationWebhook       OutboundOperation = "webhook"

	OutboundOperationListRelationships  OutboundOperation = "list_relationships"
	OutboundOperationDeleteRelationship OutboundOperation = "delete_relationship"
	OutboundOperationUpdateProfile      OutboundOperation = "update_profile"
)

// OutboundErrorKind tells callers whether a failed call is worth repeating.
type OutboundErrorKind string

const (
	// OutboundErrorKindRateLimited means the API asked the client to slow
	// down; RetryAfter holds the requested wait when the response carried one.
	OutboundErrorKindRateLimited OutboundErrorKind = "rate_limited"
	// OutboundErrorKindUnauthorized means the token was rejected.
	OutboundErrorKindUnauthorized OutboundErrorKind = "unauthorized"
	// OutboundErrorKindTemporary covers server errors and network failures.
	OutboundErrorKindTemporary OutboundErrorKind = "temporary"
	// OutboundErrorKindPermanent covers client errors such as missing
	// permissions or unknown channels.
	OutboundErrorKindPermanent OutboundErrorKind = "permanent"
	// OutboundErrorKindUnknown is used when nothing in the failure could be
	// classified.
	OutboundErrorKindUnknown OutboundErrorKind = "unknown"
)

// OutboundError describes one failed REST call.
type OutboundError struct {
	Operation  OutboundOperation
	Kind       OutboundErrorKind
	RetryAfter time.Duration
	// StatusCode is the HTTP status, zero when no response arrived.
	StatusCode int
	// Code is the JSON error code from the response body, zero when absent.
	Code  int
	Cause error
}

func (e *OutboundError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	b.WriteString("discord ")
	if e.Operation != "" {
		b.WriteString(string(e.Operation))
	} else {
		b.WriteString("request")
	}
	if e.Kind != "" {
		b.WriteString(" ")
		b.WriteString(strings.ReplaceAll(string(e.Kind), "_", " "))
	} else {
		b.WriteString(" failed")
	}

	var details []string
	if e.StatusCode != 0 {
		details = append(details, fmt.Sprintf("http %d", e.StatusCode))
	}
	if e.Code != 0 {
		details = append(details, fmt.Sprintf("code %d", e.Code))
	}
	if e.RetryAfter > 0 {
		details = append(details, "retry after "+e.RetryAfter.String())
	}
	if len(details) > 0 {
		b.WriteString(" (" + strings.Join(details, ", ") + ")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *OutboundError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// AsOutboundError finds the first OutboundError in err's chain.
func AsOutboundError(err error) (*OutboundError, bool) {
	var outbound *OutboundError
	if !errors.As(err, &outbound) || outbound == nil {
		return nil, false
	}

	return outbound, true
}

// AsOutboundRateLimit reports whether err is a rate limit and, if so, how long
// the API asked to wait. A zero delay with true means no hint was given.
func AsOutboundRateLimit(err error) (time.Duration, bool) {
	outbound, ok := AsOutboundError(err)
	if !ok || outbound.Kind != OutboundErrorKindRateLimited {
		return 0, false
	}

	return outbound.RetryAfter, true
}

// IsUnauthorized reports whether err means the token was rejected.
func IsUnauthorized(err error) bool {
	outbound, ok := AsOutboundError(err)
	return ok && outbound.Kind == OutboundErrorKindUnauthorized
}

// IsNotFound reports whether err is an HTTP 404 from the API.
func IsNotFound(err error) bool {
	outbound, ok := AsOutboundError(err)
	return ok && outbound.StatusCode == http.StatusNotFound
}
