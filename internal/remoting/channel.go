// Package remoting implements the bidirectional message channel between the
// orchestrator and a worker process.
//
// Both peers can register named handlers and export objects. An exported
// object gets a process-unique handle; the peer invokes its methods by handle.
// Messages are framed as JSON-RPC 2.0 with header-delimited framing.
package remoting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/jsonrpc2"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/zerr"
)

// MethodInvoke is the wire method used to call a method on an exported object.
const MethodInvoke = "object.invoke"

// Application error codes carried in JSON-RPC error replies.
const (
	CodeApplication       int64 = -32000
	CodeProtocolViolation int64 = -32001
	CodeUnknownHandle     int64 = -32002
)

// Handle identifies an exported object.
type Handle uint64

// HandlerFunc serves one named method.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Exported is an object whose methods may be invoked by the peer.
type Exported interface {
	Invoke(ctx context.Context, method string, params json.RawMessage) (any, error)
}

type invokeParams struct {
	Handle Handle          `json:"handle"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

var nextHandle atomic.Uint64

// Channel is one end of a connection.
//
// Notifications are handled in the read loop, one at a time, so their effects
// are observed in send order. Requests are handled on their own goroutine so a
// handler may call back across the channel while the peer waits.
type Channel struct {
	name   string
	logger ports.Logger

	mu       sync.RWMutex
	conn     *jsonrpc2.Conn
	handlers map[string]HandlerFunc
	exports  map[Handle]Exported
}

// New creates a channel that is not yet connected. Register handlers before
// calling Open so that no early request goes unanswered.
func New(name string, logger ports.Logger) *Channel {
	return &Channel{
		name:     name,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		exports:  make(map[Handle]Exported),
	}
}

// Open starts serving the connection. The channel owns rwc from now on.
func (c *Channel) Open(ctx context.Context, rwc io.ReadWriteCloser) {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, c, jsonrpc2.SetLogger(rpcLogger{c.logger}))

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// Name returns the channel's name.
func (c *Channel) Name() string {
	return c.name
}

// Register exposes a named method to the peer.
func (c *Channel) Register(method string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = fn
}

// Export makes obj invokable by the peer and returns its handle.
func (c *Channel) Export(obj Exported) Handle {
	h := Handle(nextHandle.Add(1))
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exports[h] = obj
	return h
}

// Unexport removes an exported object. Later invocations fail with an unknown handle error.
func (c *Channel) Unexport(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.exports, h)
}

// Exports returns how many objects are currently exported.
func (c *Channel) Exports() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.exports)
}

// Call invokes a named method on the peer and waits for the reply.
func (c *Channel) Call(ctx context.Context, method string, params, result any) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	if err := conn.Call(ctx, method, params, result); err != nil {
		return c.callError(method, err)
	}
	return nil
}

// Invoke calls a method of an object the peer exported and waits for the reply.
func (c *Channel) Invoke(ctx context.Context, h Handle, method string, params, result any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to encode parameters"), "method", method)
	}
	return c.Call(ctx, MethodInvoke, invokeParams{Handle: h, Method: method, Params: raw}, result)
}

// Notify sends a one-way message to the peer.
func (c *Channel) Notify(ctx context.Context, method string, params any) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	if err := conn.Notify(ctx, method, params); err != nil {
		return c.callError(method, err)
	}
	return nil
}

// Done is closed when the connection is gone.
func (c *Channel) Done() <-chan struct{} {
	conn, err := c.connection()
	if err != nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return conn.DisconnectNotify()
}

// Close closes the connection. It is safe to call more than once.
func (c *Channel) Close() error {
	conn, err := c.connection()
	if err != nil {
		return nil
	}
	if err := conn.Close(); err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
		return zerr.Wrap(err, "failed to close channel")
	}
	return nil
}

func (c *Channel) connection() (*jsonrpc2.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrChannelClosed, "channel not open"), "channel", c.name)
	}
	return c.conn, nil
}

// Handle implements jsonrpc2.Handler.
func (c *Channel) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Notif {
		if _, err := c.dispatch(ctx, req); err != nil {
			c.logger.Error(zerr.With(err, "notification", req.Method))
		}
		return
	}

	go func() {
		result, err := c.dispatch(ctx, req)
		if err != nil {
			if replyErr := conn.ReplyWithError(ctx, req.ID, toRPCError(err)); replyErr != nil && !errors.Is(replyErr, jsonrpc2.ErrClosed) {
				c.logger.Error(zerr.Wrap(replyErr, "failed to send error reply"))
			}
			return
		}
		if replyErr := conn.Reply(ctx, req.ID, result); replyErr != nil && !errors.Is(replyErr, jsonrpc2.ErrClosed) {
			c.logger.Error(zerr.Wrap(replyErr, "failed to send reply"))
		}
	}()
}

func (c *Channel) dispatch(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params json.RawMessage
	if req.Params != nil {
		params = *req.Params
	}

	if req.Method == MethodInvoke {
		var p invokeParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, zerr.Wrap(err, "malformed invocation")
		}
		c.mu.RLock()
		obj, ok := c.exports[p.Handle]
		c.mu.RUnlock()
		if !ok {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnknownHandle, "cannot invoke "+p.Method), "handle", uint64(p.Handle))
		}
		return obj.Invoke(ctx, p.Method, p.Params)
	}

	c.mu.RLock()
	fn, ok := c.handlers[req.Method]
	c.mu.RUnlock()
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownMethod, "no handler registered"), "method", req.Method)
	}
	return fn(ctx, params)
}

func toRPCError(err error) *jsonrpc2.Error {
	code := CodeApplication
	switch {
	case errors.Is(err, domain.ErrProtocolViolation):
		code = CodeProtocolViolation
	case errors.Is(err, domain.ErrUnknownHandle):
		code = CodeUnknownHandle
	case errors.Is(err, domain.ErrUnknownMethod):
		code = jsonrpc2.CodeMethodNotFound
	}
	return &jsonrpc2.Error{Code: code, Message: err.Error()}
}

func (c *Channel) callError(method string, err error) error {
	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		var wrapped error
		switch rpcErr.Code {
		case CodeProtocolViolation:
			wrapped = zerr.Wrap(domain.ErrProtocolViolation, rpcErr.Message)
		case CodeUnknownHandle:
			wrapped = zerr.Wrap(domain.ErrUnknownHandle, rpcErr.Message)
		case jsonrpc2.CodeMethodNotFound:
			wrapped = zerr.Wrap(domain.ErrUnknownMethod, rpcErr.Message)
		default:
			wrapped = zerr.New(rpcErr.Message)
		}
		return zerr.With(zerr.With(wrapped, "method", method), "channel", c.name)
	}
	if errors.Is(err, jsonrpc2.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return zerr.With(zerr.Wrap(domain.ErrChannelClosed, method), "channel", c.name)
	}
	return zerr.With(zerr.Wrap(err, "remote call failed"), "method", method)
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(params)
}

// rpcLogger routes jsonrpc2 diagnostics to the application logger.
type rpcLogger struct {
	logger ports.Logger
}

func (l rpcLogger) Printf(format string, v ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
