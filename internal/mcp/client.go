package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

const (
	maxLineSize = 16 << 20
	// gracePeriod is how long close waits for the server to exit on its own
	// after stdin is closed.
	gracePeriod = 500 * time.Millisecond
)

type response struct {
	result json.RawMessage
	err    error
}

// client speaks line-framed JSON-RPC to one MCP server subprocess. Requests
// are correlated by id, so any number of calls may be in flight.
type client struct {
	name   string
	cfg    ServerConfig
	logger *slog.Logger

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writeMu sync.Mutex

	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[int64]chan response
	dead    bool
	cause   error

	closing   atomic.Bool
	closeOnce sync.Once
	exited    chan struct{}
}

func newClient(name string, cfg ServerConfig, logger *slog.Logger) *client {
	return &client{
		name:    name,
		cfg:     cfg,
		logger:  logger,
		pending: make(map[int64]chan response),
		exited:  make(chan struct{}),
	}
}

func (c *client) start() error {
	if strings.TrimSpace(c.cfg.Command) == "" {
		return errors.New("no command configured")
	}

	// The process must outlive the bootstrap context, so it is not bound to one.
	cmd := exec.Command(c.cfg.Command, c.cfg.Args...) // #nosec G204 -- operator-configured command
	cmd.Env = append(os.Environ(), flattenEnv(c.cfg.Env)...)
	cmd.Dir = c.cfg.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start MCP server: %w", err)
	}
	c.cmd = cmd
	c.stdin = stdin

	readDone := make(chan struct{})
	stderrDone := make(chan struct{})
	go c.readLoop(stdout, readDone)
	go c.drainStderr(stderr, stderrDone)
	go c.waitLoop(readDone, stderrDone)
	return nil
}

// call sends a request and waits for the response with the same id.
func (c *client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.dead {
		cause := c.cause
		c.mu.Unlock()
		return nil, cause
	}
	id := c.nextID.Add(1)
	ch := make(chan response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(request{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: params}); err != nil {
		c.forget(id)
		if cause := c.deathCause(); cause != nil {
			return nil, cause
		}
		return nil, fmt.Errorf("write %s request: %w", method, err)
	}

	select {
	case resp := <-ch:
		return resp.result, resp.err
	case <-ctx.Done():
		c.forget(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s on %q (request %d)", schema.ErrCallTimeout, method, c.name, id)
		}
		return nil, ctx.Err()
	}
}

func (c *client) notify(method string, params any) error {
	return c.write(request{JSONRPC: jsonrpcVersion, Method: method, Params: params})
}

func (c *client) write(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.stdin.Write(data)
	return err
}

func (c *client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *client) deliver(id int64, resp response) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("discarding response for unknown or expired request", "server", c.name, "id", id)
		return
	}
	ch <- resp
}

// markDead fails every outstanding request with cause. Later calls fail
// immediately with the same error.
func (c *client) markDead(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return
	}
	c.dead = true
	c.cause = cause
	for id, ch := range c.pending {
		ch <- response{err: cause}
		delete(c.pending, id)
	}
}

func (c *client) deathCause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

func (c *client) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.dead
}

// ---------------------------------------------------------------------------
// Background loops
// ---------------------------------------------------------------------------

func (c *client) readLoop(r io.Reader, done chan<- struct{}) {
	defer close(done)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg incoming
		if err := json.Unmarshal(line, &msg); err != nil {
			c.logger.Debug("skipping non-JSON output", "server", c.name, "line", truncate(string(line), 200))
			continue
		}
		c.dispatch(msg)
	}
	if err := sc.Err(); err != nil {
		// Without a reader the server would block on its next write.
		c.logger.Error("MCP server stdout unreadable", "server", c.name, "err", err)
		c.kill()
		_, _ = io.Copy(io.Discard, r)
	}
}

func (c *client) dispatch(msg incoming) {
	hasID := len(msg.ID) > 0 && string(msg.ID) != "null"
	switch {
	case msg.Method != "" && hasID:
		c.answer(msg)
	case msg.Method != "":
		c.logger.Debug("MCP notification", "server", c.name, "method", msg.Method)
	case hasID:
		id, err := strconv.ParseInt(strings.Trim(string(msg.ID), `"`), 10, 64)
		if err != nil {
			c.logger.Debug("response with foreign id", "server", c.name, "id", string(msg.ID))
			return
		}
		resp := response{result: msg.Result}
		if msg.Error != nil {
			resp.err = msg.Error
		}
		c.deliver(id, resp)
	}
}

// answer handles requests the server sends to the client. Only ping is
// supported.
func (c *client) answer(msg incoming) {
	out := reply{JSONRPC: jsonrpcVersion, ID: msg.ID}
	if msg.Method == "ping" {
		out.Result = struct{}{}
	} else {
		out.Error = &RPCError{Code: codeMethodNotFound, Message: "method not found: " + msg.Method}
	}
	if err := c.write(out); err != nil {
		c.logger.Debug("reply to server request failed", "server", c.name, "method", msg.Method, "err", err)
	}
}

func (c *client) drainStderr(r io.Reader, done chan<- struct{}) {
	defer close(done)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		c.logger.Debug("MCP server stderr", "server", c.name, "line", sc.Text())
	}
	_, _ = io.Copy(io.Discard, r)
}

func (c *client) waitLoop(readDone, stderrDone <-chan struct{}) {
	<-readDone
	<-stderrDone
	err := c.cmd.Wait()

	var cause error
	if c.closing.Load() {
		cause = fmt.Errorf("%w: %q was shut down", schema.ErrProviderCrashed, c.name)
	} else {
		cause = fmt.Errorf("%w: %q exited: %s", schema.ErrProviderCrashed, c.name, exitReason(err))
		c.logger.Warn("MCP server exited", "server", c.name, "reason", exitReason(err))
	}
	c.markDead(cause)
	close(c.exited)
}

// close ends the server: stdin is closed first, the process is killed if it
// has not exited within the grace period. Safe to call repeatedly.
func (c *client) close(ctx context.Context) error {
	if c.cmd == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		_ = c.stdin.Close()

		timer := time.NewTimer(gracePeriod)
		defer timer.Stop()
		select {
		case <-c.exited:
		case <-timer.C:
			c.kill()
		case <-ctx.Done():
			c.kill()
		}
	})

	select {
	case <-c.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *client) kill() {
	if c.cmd == nil || c.cmd.Process == nil {
		return
	}
	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		c.logger.Debug("kill MCP server", "server", c.name, "err", err)
	}
}

func exitReason(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
