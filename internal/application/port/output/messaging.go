package output

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"zenix/internal/domain/entity"
)

// ErrNoReceiver is returned by Send when nothing listens on the endpoint.
var ErrNoReceiver = errors.New("no receiver for endpoint")

type Endpoint string

const (
	EndpointBackground Endpoint = "background"
	EndpointPanel      Endpoint = "panel"

	contentPrefix = "content:"
)

func ContentEndpoint(tabID int) Endpoint {
	return Endpoint(contentPrefix + strconv.Itoa(tabID))
}

func (e Endpoint) IsContent() bool {
	return strings.HasPrefix(string(e), contentPrefix)
}

type Handler func(ctx context.Context, env entity.Envelope)

// MessageBus delivers envelopes at most once, in order per endpoint.
type MessageBus interface {
	Send(ctx context.Context, to Endpoint, env entity.Envelope) error
	Subscribe(to Endpoint, h Handler) (unsubscribe func(), err error)
}
