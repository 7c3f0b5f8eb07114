// Package workerclient forwards one serialized inference request to a worker
// over its local socket and returns the serialized response. Payloads are
// opaque here; the dispatch layer owns protobuf encoding. The client never
// retries: retry policy belongs to the caller, where request identity is
// visible.
package workerclient

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dispatchd/internal/framing"
	"dispatchd/internal/pool"
)

// Client sends framed requests through the shared connection pool.
type Client struct {
	pool       *pool.Pool
	maxMessage uint32
	log        zerolog.Logger
}

func New(p *pool.Pool, log zerolog.Logger) *Client {
	return &Client{pool: p, log: log}
}

// SocketPath strips the unix:// scheme from a worker endpoint. Bare paths
// pass through unchanged.
func SocketPath(endpoint string) string {
	return strings.TrimPrefix(endpoint, "unix://")
}

// Forward sends request to the worker at endpoint and returns the response
// payload. Connection failures, short writes, and short reads all surface as
// transport errors and discard the connection; only a full round trip
// releases the connection healthy.
func (c *Client) Forward(ctx context.Context, endpoint string, request []byte) ([]byte, error) {
	socket := SocketPath(endpoint)
	forwardTotal.WithLabelValues(socket).Inc()

	conn, err := c.pool.Acquire(ctx, socket)
	if err != nil {
		forwardFailuresTotal.WithLabelValues(socket, "acquire").Inc()
		return nil, transportError{op: "acquire", endpoint: endpoint, err: err}
	}

	// Honor the caller's deadline on every socket operation.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Time{})
	}

	if err := framing.WriteMessage(conn, request); err != nil {
		c.pool.Release(socket, conn, false)
		forwardFailuresTotal.WithLabelValues(socket, "send").Inc()
		c.log.Warn().Str("endpoint", endpoint).Err(err).Msg("worker send failed")
		return nil, transportError{op: "send", endpoint: endpoint, err: err}
	}

	response, err := framing.ReadMessage(conn, c.maxMessage)
	if err != nil {
		c.pool.Release(socket, conn, false)
		forwardFailuresTotal.WithLabelValues(socket, "recv").Inc()
		c.log.Warn().Str("endpoint", endpoint).Err(err).Msg("worker recv failed")
		return nil, transportError{op: "recv", endpoint: endpoint, err: err}
	}

	c.pool.Release(socket, conn, true)
	return response, nil
}
