package fault

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
		msg    string
	}{
		{"unauthorized", http.StatusUnauthorized, "", CredentialInvalid, MsgCredentialInvalid},
		{"forbidden", http.StatusForbidden, "denied", CredentialInvalid, MsgCredentialInvalid},
		{"rate limited", http.StatusTooManyRequests, "slow down", RateLimited, MsgRateLimited},
		{"quota", http.StatusTooManyRequests, "Quota exceeded for project", QuotaExceeded, MsgQuotaExceeded},
		{"missing key", http.StatusBadRequest, "API key not configured", CredentialMissing, MsgCredentialMissing},
		{"bad request", http.StatusBadRequest, "Message is required", ProtocolError, "Message is required"},
		{"bad gateway", http.StatusBadGateway, "", NetworkUnreachable, "request failed with status 502"},
		{"server error", http.StatusInternalServerError, "boom", Unknown, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FromStatus(tt.status, tt.body)
			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.msg, f.Message)
			assert.Equal(t, tt.status, f.HTTPStatus())
		})
	}
}

func TestClassify_PrefersTypedInformation(t *testing.T) {
	// An existing fault beats a misleading message.
	existing := New(QuotaExceeded, "api key not valid")
	wrapped := fmt.Errorf("stream: %w", existing)
	assert.Same(t, existing, Classify(wrapped))

	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
	assert.Equal(t, NetworkUnreachable, Classify(opErr).Kind)
}

func TestClassify_FallsBackToMessage(t *testing.T) {
	tests := []struct {
		msg  string
		kind Kind
	}{
		{"API key not valid. Please pass a valid API key.", CredentialInvalid},
		{"Error 429: rate limit reached", RateLimited},
		{"You exceeded your current quota", QuotaExceeded},
		{"dial tcp: connection refused", NetworkUnreachable},
		{"something odd", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			f := Classify(errors.New(tt.msg))
			require.NotNil(t, f)
			assert.Equal(t, tt.kind, f.Kind)
		})
	}
}

func TestFromMessage_KeepsUnknownText(t *testing.T) {
	assert.Equal(t, "model overloaded", FromMessage("model overloaded").Message)
	assert.Equal(t, MsgStreamFailed, FromMessage("").Message)
}

func TestFault_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("relay: %w", New(RateLimited, "custom text"))
	assert.True(t, errors.Is(err, New(RateLimited, "")))
	assert.False(t, errors.Is(err, New(QuotaExceeded, "")))
}

func TestUnreachable(t *testing.T) {
	f := Unreachable("http://localhost:3000", errors.New("refused"))
	assert.Equal(t, NetworkUnreachable, f.Kind)
	assert.Contains(t, f.Message, "http://localhost:3000")
	assert.Equal(t, http.StatusBadGateway, f.HTTPStatus())
}
