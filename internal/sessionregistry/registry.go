// Package sessionregistry lets 'webdrive serve' hold a *webdriver.Session
// open and answer RPCs against it by method name, the same way the
// teacher's own daemon held a live browser behind a Unix socket for other
// processes to reach. A Session is a thin, stateless handle over an HTTP
// connection to the remote driver — the only per-invocation cost a fresh
// attach pays is re-fetching its capability map — so Client/Dial are used
// by the CLI's attachSession to skip that capability round trip when a
// registry is already serving the requested --session, not to proxy the
// find/click/navigate traffic itself: every command still talks to the
// remote driver directly once it has a Session in hand.
package sessionregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"reflect"
	"sync"
	"time"

	"github.com/vibium/webdrive/internal/rpc"
)

// Registry serves RPC calls against a single Session until Close is
// called. Only one session per registry: the CLI keys socket paths by
// session id, so concurrent sessions get distinct sockets.
type Registry struct {
	listener net.Listener
	target   reflect.Value
	mu       sync.Mutex // serializes dispatch; the Session below has its own finer-grained locking
	done     chan struct{}
	closeOne sync.Once
}

// Serve starts listening on socketPath and dispatches every accepted
// connection's requests against target (normally a *webdriver.Session)
// until ctx is cancelled or Close is called.
func Serve(ctx context.Context, socketPath string, target interface{}) (*Registry, error) {
	l, err := listen(socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	r := &Registry{
		listener: l,
		target:   reflect.ValueOf(target),
		done:     make(chan struct{}),
	}
	go r.acceptLoop()
	go func() {
		select {
		case <-ctx.Done():
			r.Close()
		case <-r.done:
		}
	}()
	return r, nil
}

func (r *Registry) Close() error {
	var err error
	r.closeOne.Do(func() {
		close(r.done)
		err = r.listener.Close()
	})
	return err
}

func (r *Registry) acceptLoop() {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return
		}
		go r.serveConn(conn)
	}
}

func (r *Registry) serveConn(conn net.Conn) {
	defer conn.Close()
	dec := rpc.NewDecoder(conn)
	enc := rpc.NewEncoder(conn)
	for {
		var req rpc.Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		resp := r.dispatch(req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

// dispatch serializes access to the target so two attached CLI processes
// never race a single Session's internal state, mirroring the mutex the
// daemon held around its handler calls.
func (r *Registry) dispatch(req rpc.Request) rpc.Response {
	r.mu.Lock()
	defer r.mu.Unlock()

	method := r.target.MethodByName(req.Method)
	if !method.IsValid() {
		return rpc.Response{ID: req.ID, Err: fmt.Sprintf("unknown method %q", req.Method)}
	}

	var rawArgs []json.RawMessage
	if len(req.Args) > 0 {
		if err := json.Unmarshal(req.Args, &rawArgs); err != nil {
			return rpc.Response{ID: req.ID, Err: err.Error()}
		}
	}

	mtype := method.Type()
	in := make([]reflect.Value, 0, mtype.NumIn())
	argIdx := 0
	for i := 0; i < mtype.NumIn(); i++ {
		pt := mtype.In(i)
		if pt.String() == "context.Context" {
			in = append(in, reflect.ValueOf(context.Background()))
			continue
		}
		if argIdx >= len(rawArgs) {
			in = append(in, reflect.Zero(pt))
			continue
		}
		pv := reflect.New(pt)
		if err := json.Unmarshal(rawArgs[argIdx], pv.Interface()); err != nil {
			return rpc.Response{ID: req.ID, Err: err.Error()}
		}
		in = append(in, pv.Elem())
		argIdx++
	}

	out := method.Call(in)
	return buildResponse(req.ID, out)
}

func buildResponse(id int64, out []reflect.Value) rpc.Response {
	if len(out) == 0 {
		return rpc.Response{ID: id}
	}
	last := out[len(out)-1]
	isErr := last.Type().Implements(errType)
	if isErr {
		if !last.IsNil() {
			return rpc.Response{ID: id, Err: last.Interface().(error).Error()}
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return rpc.Response{ID: id}
	}
	b, err := json.Marshal(out[0].Interface())
	if err != nil {
		return rpc.Response{ID: id, Err: err.Error()}
	}
	return rpc.Response{ID: id, Result: b}
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Client dials an existing registry and issues RPC calls against its
// target by method name.
type Client struct {
	conn net.Conn
	enc  *rpc.Encoder
	dec  *rpc.Decoder
	mu   sync.Mutex
	next int64
}

// Dial connects to a registry listening on socketPath.
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	conn, err := dial(socketPath, timeout)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, enc: rpc.NewEncoder(conn), dec: rpc.NewDecoder(conn)}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Call invokes method remotely and decodes its single result value into
// out (pass nil if the method returns only an error).
func (c *Client) Call(method string, out interface{}, args ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	argBytes, err := json.Marshal(args)
	if err != nil {
		return err
	}
	if err := c.enc.Encode(rpc.Request{ID: c.next, Method: method, Args: argBytes}); err != nil {
		return err
	}
	var resp rpc.Response
	if err := c.dec.Decode(&resp); err != nil {
		return err
	}
	if resp.Err != "" {
		return fmt.Errorf("%s: %s", method, resp.Err)
	}
	if out != nil && len(resp.Result) > 0 {
		return json.Unmarshal(resp.Result, out)
	}
	return nil
}
