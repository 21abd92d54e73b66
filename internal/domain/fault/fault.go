// Package fault classifies failures along the way from the page to the model
// provider into a small set of kinds the panel knows how to present.
package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type Kind string

const (
	CredentialMissing  Kind = "CredentialMissing"
	CredentialInvalid  Kind = "CredentialInvalid"
	RateLimited        Kind = "RateLimited"
	QuotaExceeded      Kind = "QuotaExceeded"
	NetworkUnreachable Kind = "NetworkUnreachable"
	ProtocolError      Kind = "ProtocolError"
	NoActiveDocument   Kind = "NoActiveDocument"
	Unknown            Kind = "Unknown"
)

const (
	MsgCredentialMissing = "API key not configured. Please set your Google AI API key in settings."
	MsgCredentialInvalid = "Invalid API key. Please check your Google AI API key in settings."
	MsgRateLimited       = "Rate limit exceeded. Please wait a moment before trying again."
	MsgQuotaExceeded     = "API quota exceeded. Please check your Google AI Studio account."
	MsgNoActiveDocument  = "No active webpage found."
	MsgSelectionWebOnly  = "Element selection is only available on web pages."
	MsgSelectionFailed   = "Failed to start element selection. Please refresh the page and try again."
	MsgStreamFailed      = "An error occurred while streaming the response."
)

// Fault is a classified failure. Message is safe to show to the user.
type Fault struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (f *Fault) Error() string {
	if f.Message != "" {
		return f.Message
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return string(f.Kind)
}

// UserMessage is the text the panel shows for this fault.
func (f *Fault) UserMessage() string {
	if f.Message != "" {
		return f.Message
	}
	return MsgStreamFailed
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Is matches any *Fault of the same kind, so errors.Is(err, fault.New(fault.RateLimited, ""))
// works without comparing messages.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	if !ok {
		return false
	}
	return t.Kind == f.Kind
}

// HTTPStatus maps the fault onto the status the proxy answers with.
func (f *Fault) HTTPStatus() int {
	if f.Status != 0 {
		return f.Status
	}
	switch f.Kind {
	case CredentialMissing:
		return http.StatusBadRequest
	case CredentialInvalid:
		return http.StatusUnauthorized
	case RateLimited, QuotaExceeded:
		return http.StatusTooManyRequests
	case NetworkUnreachable, ProtocolError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Fault {
	if message == "" {
		message = DefaultMessage(kind)
	}
	return &Fault{Kind: kind, Message: message}
}

func Wrap(kind Kind, err error) *Fault {
	f := New(kind, "")
	if f.Message == "" && err != nil {
		f.Message = err.Error()
	}
	f.Err = err
	return f
}

// DefaultMessage returns the user-facing text for kind, or "" for kinds that
// carry the underlying message instead.
func DefaultMessage(kind Kind) string {
	switch kind {
	case CredentialMissing:
		return MsgCredentialMissing
	case CredentialInvalid:
		return MsgCredentialInvalid
	case RateLimited:
		return MsgRateLimited
	case QuotaExceeded:
		return MsgQuotaExceeded
	case NoActiveDocument:
		return MsgNoActiveDocument
	default:
		return ""
	}
}

// Unreachable builds the NetworkUnreachable fault naming the server the user should start.
func Unreachable(serverURL string, err error) *Fault {
	return &Fault{
		Kind:    NetworkUnreachable,
		Message: "Cannot connect to AI server. Please make sure the server is running on " + serverURL,
		Err:     err,
	}
}

// FromStatus classifies an HTTP response status. body is the server supplied
// error text, used to tell quota exhaustion apart from rate limiting.
func FromStatus(status int, body string) *Fault {
	var kind Kind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = CredentialInvalid
	case status == http.StatusTooManyRequests:
		kind = RateLimited
		if isQuota(strings.ToLower(body)) {
			kind = QuotaExceeded
		}
	case status == http.StatusBadRequest:
		if k := match(strings.ToLower(body)); k != Unknown {
			kind = k
		} else {
			kind = ProtocolError
		}
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		kind = NetworkUnreachable
		if k := match(strings.ToLower(body)); k != Unknown {
			kind = k
		}
	default:
		kind = match(strings.ToLower(body))
	}

	msg := DefaultMessage(kind)
	if msg == "" {
		msg = body
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", status)
	}
	return &Fault{Kind: kind, Message: msg, Status: status}
}

// FromMessage classifies a bare error string. It is the fallback for errors
// that arrive as text only, such as mid-stream error frames.
func FromMessage(message string) *Fault {
	kind := match(strings.ToLower(message))
	msg := DefaultMessage(kind)
	if msg == "" {
		msg = message
	}
	if msg == "" {
		msg = MsgStreamFailed
	}
	return &Fault{Kind: kind, Message: msg}
}

// Classify turns any error into a *Fault. Typed information (an existing
// fault, a network error) wins over message inspection. Provider adapters
// build faults from their typed API errors before they get here.
func Classify(err error) *Fault {
	if err == nil {
		return nil
	}

	var f *Fault
	if errors.As(err, &f) {
		return f
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Fault{Kind: Unknown, Message: MsgStreamFailed, Err: err}
	}

	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &netErr) {
		return &Fault{Kind: NetworkUnreachable, Message: err.Error(), Err: err}
	}

	out := FromMessage(err.Error())
	out.Err = err
	return out
}

func match(lower string) Kind {
	switch {
	case lower == "":
		return Unknown
	case strings.Contains(lower, "api key not configured") || strings.Contains(lower, "api key is required"):
		return CredentialMissing
	case strings.Contains(lower, "api key not valid") || strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "api_key_invalid"):
		return CredentialInvalid
	case isQuota(lower):
		return QuotaExceeded
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate_limit") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "resource_exhausted"):
		return RateLimited
	case strings.Contains(lower, "failed to fetch") || strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such host"):
		return NetworkUnreachable
	default:
		return Unknown
	}
}

func isQuota(lower string) bool {
	return strings.Contains(lower, "quota")
}
