// Package client talks to the engine API over its unix socket.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/enginectl/internal/engine/command"
	"github.com/louisbranch/enginectl/internal/engine/protocol"
	apperrors "github.com/louisbranch/enginectl/internal/platform/errors"
	"github.com/louisbranch/enginectl/internal/platform/timeouts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSocketPath is where a stock engine install listens for API requests.
const DefaultSocketPath = "/var/ossec/queue/sockets/engine-api"

const tracerName = "github.com/louisbranch/enginectl/internal/engine/client"

// Dialer opens a stream connection to the engine.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialContext implements Dialer.
func (fn DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return fn(ctx, network, address)
}

// Config controls how the client reaches the engine.
type Config struct {
	SocketPath     string
	Origin         protocol.Origin
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	Dialer         Dialer
	TracerProvider trace.TracerProvider
}

// Client issues engine API calls. It opens one connection per call and is
// safe for concurrent use.
type Client struct {
	socketPath     string
	origin         protocol.Origin
	dialTimeout    time.Duration
	requestTimeout time.Duration
	dialer         Dialer
	tracer         trace.Tracer
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	socketPath := strings.TrimSpace(cfg.SocketPath)
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if strings.TrimSpace(cfg.Origin.Name) == "" {
		return nil, fmt.Errorf("origin name is required")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = timeouts.EngineDial
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = timeouts.EngineRequest
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Client{
		socketPath:     socketPath,
		origin:         cfg.Origin,
		dialTimeout:    dialTimeout,
		requestTimeout: requestTimeout,
		dialer:         dialer,
		tracer:         provider.Tracer(tracerName),
	}, nil
}

// SocketPath returns the socket the client dials.
func (c *Client) SocketPath() string {
	return c.socketPath
}

// Call sends id with params and returns the data of a successful response.
// The origin module defaults to the command family.
func (c *Client) Call(ctx context.Context, id command.Identifier, params any) (json.RawMessage, error) {
	origin := c.origin
	if origin.Module == "" {
		origin.Module = string(id.Family())
	}
	req, err := protocol.NewRequest(id, origin, params)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, apperrors.WithMetadata(
			apperrors.CodeEngineRejected,
			fmt.Sprintf("engine rejected %s: %s", id.WireValue(), resp.Message),
			map[string]string{
				"command":        id.WireValue(),
				"engine_error":   strconv.Itoa(resp.Error),
				"engine_message": resp.Message,
			},
		)
	}
	return resp.Data, nil
}

// Do performs one framed request/response exchange. A rejected request is
// not an error at this level; inspect Response.OK.
func (c *Client) Do(ctx context.Context, req protocol.Request) (resp protocol.Response, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := c.tracer.Start(ctx, "engine.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("engine.command", req.Command.WireValue()),
			attribute.String("engine.family", string(req.Command.Family())),
			attribute.String("engine.socket", c.socketPath),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("engine.error", resp.Error))
		}
		span.End()
	}()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, c.dialTimeout)
	conn, err := c.dialer.DialContext(dialCtx, "unix", c.socketPath)
	cancelDial()
	if err != nil {
		return protocol.Response{}, apperrors.WrapWithMetadata(
			apperrors.CodeEngineUnavailable,
			"dial engine",
			map[string]string{"socket": c.socketPath},
			err,
		)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return protocol.Response{}, apperrors.Wrap(apperrors.CodeEngineUnavailable, "set engine deadline", err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := protocol.WriteRequest(conn, req); err != nil {
		return protocol.Response{}, c.transportError(ctx, "send request", err)
	}
	resp, err = protocol.ReadResponse(conn)
	if err != nil {
		return protocol.Response{}, c.transportError(ctx, "read response", err)
	}
	return resp, nil
}

// transportError keeps protocol errors as they are, reports context ends as
// such, and classifies everything else as the engine being unavailable.
func (c *Client) transportError(ctx context.Context, message string, err error) error {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperrors.Wrap(apperrors.CodeEngineUnavailable, message, ctxErr)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return apperrors.Wrap(apperrors.CodeEngineUnavailable, message, fmt.Errorf("%w: %w", context.DeadlineExceeded, err))
	}
	return apperrors.Wrap(apperrors.CodeEngineUnavailable, message, err)
}
