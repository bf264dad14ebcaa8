package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// DefaultRequestTimeout bounds each Request when Config.RequestTimeout is zero.
const DefaultRequestTimeout = 30 * time.Second

const eventBuffer = 64

var (
	// ErrNotStarted is returned when Request or Notify is called before Start.
	ErrNotStarted = errors.New("transport not started")
	// ErrClosed is returned once the connection has been stopped or the child exited.
	ErrClosed = errors.New("transport closed")
	// ErrTimeout is returned when no response arrives within the request timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrMalformed wraps inbound lines that are not valid JSON-RPC.
	ErrMalformed = errors.New("malformed message")
	// ErrStderr wraps lines the child wrote to its error stream.
	ErrStderr = errors.New("stderr output")
)

// Config describes the child process to launch.
type Config struct {
	Command string
	Args    []string
	// Env entries are appended to the current process environment.
	Env            []string
	Dir            string
	RequestTimeout time.Duration
}

type response struct {
	result json.RawMessage
	err    error
}

// Conn is a JSON-RPC connection to one child process.
type Conn struct {
	cfg     Config
	timeout time.Duration
	events  chan Event

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.Reader
	started bool
	closed  bool
	nextID  int64
	pending map[int64]chan response

	writeMu sync.Mutex

	// buf holds a trailing partial line; only the read loop touches it.
	buf []byte

	done      chan struct{}
	closeOnce sync.Once
}

// New returns an unstarted connection.
func New(cfg Config) *Conn {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Conn{
		cfg:     cfg,
		timeout: timeout,
		events:  make(chan Event, eventBuffer),
		pending: make(map[int64]chan response),
		done:    make(chan struct{}),
	}
}

// Events returns the out-of-band event stream. The channel is never closed;
// an EventClose marks the end of the child's output.
func (c *Conn) Events() <-chan Event { return c.events }

// Start launches the child with piped stdio. It returns once the process has
// been spawned; application readiness is the caller's handshake.
func (c *Conn) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if c.cfg.Command == "" {
		return fmt.Errorf("starting tool server: empty command")
	}
	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	cmd.Dir = c.cfg.Dir
	if len(c.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), c.cfg.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", c.cfg.Command, err)
	}

	c.mu.Lock()
	c.cmd = cmd
	c.mu.Unlock()
	c.attach(stdin, stdout, stderr)
	return nil
}

// attach wires the connection to already-open streams and starts the readers.
func (c *Conn) attach(stdin io.WriteCloser, stdout, stderr io.Reader) {
	c.mu.Lock()
	c.stdin = stdin
	c.stdout = stdout
	c.started = true
	c.mu.Unlock()

	go c.readLoop(stdout)
	if stderr != nil {
		go c.stderrLoop(stderr)
	}
}

// Request sends a request and waits for the matching response, the request
// timeout, ctx cancellation, or Stop, whichever comes first.
func (c *Conn) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	raw, err := encodeParams(params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(Message{JSONRPC: jsonrpcVersion, ID: &id, Method: method, Params: raw}); err != nil {
		c.forget(id)
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp.result, resp.err
	case <-timer.C:
		c.forget(id)
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, method, c.timeout)
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// Notify sends a notification. No response is expected.
func (c *Conn) Notify(method string, params any) error {
	raw, err := encodeParams(params)
	if err != nil {
		return err
	}
	c.mu.Lock()
	started, closed := c.started, c.closed
	c.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	if closed {
		return ErrClosed
	}
	return c.write(Message{JSONRPC: jsonrpcVersion, Method: method, Params: raw})
}

// Stop terminates the child and discards pending requests: no response is
// delivered to them, and each blocked Request returns ErrClosed at once
// instead of waiting for its timeout. Safe to call more than once.
func (c *Conn) Stop() error {
	c.mu.Lock()
	if c.closed && c.cmd == nil && c.stdin == nil {
		c.mu.Unlock()
		return nil
	}
	cmd, stdin, stdout := c.cmd, c.stdin, c.stdout
	c.cmd, c.stdin, c.stdout = nil, nil, nil
	c.mu.Unlock()

	c.markClosed()

	var errs []error
	if stdin != nil {
		if err := stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("closing stdin: %w", err))
		}
	}
	if cmd == nil {
		if closer, ok := stdout.(io.Closer); ok {
			_ = closer.Close()
		}
		return errors.Join(errs...)
	}
	if cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("killing process: %w", err))
		}
	}
	// The exit status after Kill is always non-zero and not interesting.
	_ = cmd.Wait()
	return errors.Join(errs...)
}

// Pid returns the child's process id, or 0 when no process is attached.
func (c *Conn) Pid() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.pending = make(map[int64]chan response)
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) write(msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	b = append(b, '\n')

	c.mu.Lock()
	stdin := c.stdin
	c.mu.Unlock()
	if stdin == nil {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := stdin.Write(b); err != nil {
		return fmt.Errorf("writing %s: %w", msg.Method, err)
	}
	return nil
}

func (c *Conn) readLoop(r io.Reader) {
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			c.handleData(chunk[:n])
		}
		if err != nil {
			c.mu.Lock()
			stopping := c.closed
			c.mu.Unlock()
			if !stopping && !errors.Is(err, io.EOF) {
				c.emit(Event{Kind: EventError, Err: fmt.Errorf("reading stdout: %w", err)})
			}
			c.markClosed()
			c.emit(Event{Kind: EventClose})
			return
		}
	}
}

func (c *Conn) stderrLoop(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		c.emit(Event{Kind: EventError, Err: fmt.Errorf("%w: %s", ErrStderr, line)})
	}
}

// handleData appends a chunk to the line buffer and dispatches every complete
// line. A trailing partial line stays buffered for the next chunk.
func (c *Conn) handleData(chunk []byte) {
	c.buf = append(c.buf, chunk...)
	for {
		i := bytes.IndexByte(c.buf, '\n')
		if i < 0 {
			return
		}
		line := c.buf[:i]
		c.handleLine(line)
		c.buf = c.buf[i+1:]
	}
}

func (c *Conn) handleLine(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		c.emit(Event{Kind: EventError, Err: fmt.Errorf("%w: %v", ErrMalformed, err)})
		return
	}

	if msg.Method != "" {
		c.emit(Event{Kind: EventNotification, Method: msg.Method, Params: msg.Params})
		return
	}
	if msg.ID == nil {
		c.emit(Event{Kind: EventError, Err: fmt.Errorf("%w: message has neither id nor method", ErrMalformed)})
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[*msg.ID]
	delete(c.pending, *msg.ID)
	c.mu.Unlock()
	if !ok {
		// Late response after a timeout, or an id we never issued.
		return
	}

	if msg.Error != nil {
		ch <- response{err: msg.Error}
		return
	}
	ch <- response{result: msg.Result}
}

func (c *Conn) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}
