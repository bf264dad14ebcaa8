package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/ethanasm/mcp-review/internal/config"
	"github.com/ethanasm/mcp-review/internal/observe"
	"github.com/ethanasm/mcp-review/internal/providers"
	"github.com/ethanasm/mcp-review/internal/registry"
	"github.com/ethanasm/mcp-review/internal/review"
	"github.com/ethanasm/mcp-review/internal/transport"
)

// ErrNotInitialized is returned by RunReview before a successful Initialize.
var ErrNotInitialized = errors.New("host not initialized")

const (
	methodInitialize  = "initialize"
	notifyInitialized = "notifications/initialized"

	// DefaultTokenBudget is the budget ceiling when none is configured.
	DefaultTokenBudget = 200_000
	lowBudgetFraction  = 0.2
)

// Conn is a started connection to one tool server. *transport.Conn
// implements it.
type Conn interface {
	registry.Caller
	Notify(method string, params any) error
	Events() <-chan transport.Event
}

// DialFunc starts the process for one configured server.
type DialFunc func(ctx context.Context, s config.Server) (Conn, error)

// Options configures a Host.
type Options struct {
	Servers []config.Server
	// Dial defaults to spawning s.Command over stdio.
	Dial      DialFunc
	Provider  providers.Provider
	Review    review.Options
	Cacheable map[string]bool
	// TokenBudget is the advisory ceiling; 0 means DefaultTokenBudget.
	TokenBudget   int
	ClientName    string
	ClientVersion string
	Logger        *slog.Logger
}

// Host runs tool servers and review sessions over them.
type Host struct {
	opts Options
	log  *slog.Logger

	mu          sync.Mutex
	initialized bool
	registry    *registry.Registry
	conns       map[string]Conn
	stopDrain   chan struct{}
	drainWG     sync.WaitGroup
	budget      int
	used        int
}

// New returns an uninitialized host.
func New(opts Options) *Host {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Dial == nil {
		opts.Dial = DialStdio
	}
	if opts.ClientName == "" {
		opts.ClientName = "mcp-review"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "dev"
	}
	budget := opts.TokenBudget
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	return &Host{
		opts:     opts,
		log:      log,
		registry: registry.New(registry.Options{Cacheable: opts.Cacheable, Logger: log}),
		conns:    make(map[string]Conn),
		budget:   budget,
	}
}

// DialStdio spawns s.Command and returns its started transport.
func DialStdio(ctx context.Context, s config.Server) (Conn, error) {
	env := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	c := transport.New(transport.Config{Command: s.Command, Args: s.Args, Env: env})
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Initialize starts every configured server concurrently and registers the
// tools of those that complete the handshake. Failures of individual servers
// are logged, not returned. A second call is a no-op.
func (h *Host) Initialize(ctx context.Context) error {
	h.mu.Lock()
	if h.initialized {
		h.mu.Unlock()
		return nil
	}
	h.stopDrain = make(chan struct{})
	stop := h.stopDrain
	h.mu.Unlock()

	var g errgroup.Group
	for _, s := range h.opts.Servers {
		g.Go(func() error {
			if err := h.startServer(ctx, s, stop); err != nil {
				h.log.Warn("tool server unavailable", "server", s.Name, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		h.Shutdown()
		return err
	}

	h.mu.Lock()
	h.initialized = true
	started := len(h.conns)
	h.mu.Unlock()
	h.log.Debug("host initialized", "servers", started, "configured", len(h.opts.Servers),
		"tools", len(h.registry.AvailableTools()))
	return nil
}

func (h *Host) startServer(ctx context.Context, s config.Server, stop <-chan struct{}) (err error) {
	ctx, span := observe.StartSpan(ctx, "host.start_server")
	defer span.End()
	span.SetAttributes(attribute.String("server.name", s.Name))
	defer func() { observe.Fail(span, err) }()

	conn, err := h.opts.Dial(ctx, s)
	if err != nil {
		return fmt.Errorf("spawning: %w", err)
	}
	h.drainWG.Add(1)
	go h.drain(s.Name, conn, stop)

	if err := h.handshake(ctx, conn); err != nil {
		_ = conn.Stop()
		return err
	}
	if err := h.registry.RegisterServer(ctx, s.Name, conn); err != nil {
		_ = conn.Stop()
		return err
	}

	h.mu.Lock()
	h.conns[s.Name] = conn
	h.mu.Unlock()
	return nil
}

func (h *Host) handshake(ctx context.Context, conn Conn) error {
	params := mcp.InitializeParams{
		ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
		ClientInfo: mcp.Implementation{
			Name:    h.opts.ClientName,
			Version: h.opts.ClientVersion,
		},
		Capabilities: mcp.ClientCapabilities{},
	}
	if _, err := conn.Request(ctx, methodInitialize, params); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := conn.Notify(notifyInitialized, nil); err != nil {
		return fmt.Errorf("sending initialized: %w", err)
	}
	return nil
}

// drain logs out-of-band transport events until the child's output ends or
// the host shuts down.
func (h *Host) drain(name string, conn Conn, stop <-chan struct{}) {
	defer h.drainWG.Done()
	log := h.log.With("server", name)
	for {
		select {
		case <-stop:
			return
		case ev := <-conn.Events():
			switch ev.Kind {
			case transport.EventNotification:
				log.Debug("tool server notification", "method", ev.Method)
			case transport.EventError:
				if errors.Is(ev.Err, transport.ErrStderr) {
					log.Debug("tool server stderr", "msg", ev.Err)
				} else {
					log.Warn("tool server error", "err", ev.Err)
				}
			case transport.EventClose:
				log.Debug("tool server exited")
				return
			}
		}
	}
}

// Registry returns the shared tool registry.
func (h *Host) Registry() *registry.Registry { return h.registry }

// Servers returns the names of the servers that started, sorted.
func (h *Host) Servers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.conns))
	for n := range h.conns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Initialized reports whether Initialize has completed.
func (h *Host) Initialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initialized
}

// RunReview reviews the prefetched change with the host's provider and tools.
// Reported provider usage is added to the token budget.
func (h *Host) RunReview(ctx context.Context, in review.Input, progress review.Progress) (*review.Result, error) {
	if !h.Initialized() {
		return nil, ErrNotInitialized
	}
	if h.opts.Provider == nil {
		return nil, errors.New("host has no provider configured")
	}
	opts := h.opts.Review
	if opts.Logger == nil {
		opts.Logger = h.log
	}
	conv := review.NewConversation(h.opts.Provider, h.registry, opts)
	res, err := conv.Run(ctx, in, progress)
	if err != nil {
		return nil, err
	}
	if res.TokenUsage != nil {
		h.AddTokens(res.TokenUsage.Total())
	}
	if h.IsTokenBudgetLow() {
		h.log.Warn("token budget low", "remaining", h.TokenBudgetRemaining(), "budget", h.budget)
	}
	return res, nil
}

// AddTokenUsage counts text against the budget at review.CharsPerToken
// characters per token.
func (h *Host) AddTokenUsage(text string) {
	h.AddTokens(len(text) / review.CharsPerToken)
}

// AddTokens counts n tokens against the budget.
func (h *Host) AddTokens(n int) {
	if n <= 0 {
		return
	}
	h.mu.Lock()
	h.used += n
	h.mu.Unlock()
}

// TokensUsed returns the tokens counted so far.
func (h *Host) TokensUsed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used
}

// TokenBudgetRemaining returns the unused budget, never below zero.
func (h *Host) TokenBudgetRemaining() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return max(h.budget-h.used, 0)
}

// IsTokenBudgetLow reports whether less than 20% of the budget remains.
func (h *Host) IsTokenBudgetLow() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return float64(h.budget-h.used) < float64(h.budget)*lowBudgetFraction
}

// Shutdown stops every tool server and resets the host. It is safe to call
// more than once; the host can be initialized again afterwards.
func (h *Host) Shutdown() error {
	h.mu.Lock()
	stop := h.stopDrain
	h.stopDrain = nil
	h.conns = make(map[string]Conn)
	h.initialized = false
	h.used = 0
	h.mu.Unlock()

	err := h.registry.Shutdown()
	if stop != nil {
		close(stop)
	}
	h.drainWG.Wait()
	return err
}
