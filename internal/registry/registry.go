package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ethanasm/mcp-review/internal/observe"
)

// NoContent is returned as the content of a call that produced no text.
const NoContent = "(no content)"

const (
	methodToolsList = "tools/list"
	methodToolsCall = "tools/call"
)

// Capability is one tool a server exposes.
type Capability struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Caller is the part of a transport connection the registry needs.
type Caller interface {
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)
	Stop() error
}

// ToolCall is a request to run one tool.
type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

// Result is the text a tool produced.
type Result struct {
	Content string
	IsError bool
}

// ServerError reports a dispatch failure of the server that owns Tool.
type ServerError struct {
	Server string
	Tool   string
	Err    error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("tool server %s: calling %s: %v", e.Server, e.Tool, e.Err)
}

func (e *ServerError) Unwrap() error { return e.Err }

// Options configures a Registry.
type Options struct {
	// Cacheable lists tools whose results may be memoized. Tools not present
	// or mapped to false are never cached.
	Cacheable map[string]bool
	Logger    *slog.Logger
}

type server struct {
	name  string
	conn  Caller
	tools []Capability
}

// Registry routes tool calls to servers. It is safe for concurrent use.
type Registry struct {
	log       *slog.Logger
	cacheable map[string]bool

	mu      sync.RWMutex
	servers map[string]*server
	order   []string
	owners  map[string]string

	cacheMu sync.Mutex
	cache   map[string]Result
}

// New returns an empty registry.
func New(opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	cacheable := make(map[string]bool, len(opts.Cacheable))
	for name, ok := range opts.Cacheable {
		cacheable[name] = ok
	}
	return &Registry{
		log:       log,
		cacheable: cacheable,
		servers:   make(map[string]*server),
		owners:    make(map[string]string),
		cache:     make(map[string]Result),
	}
}

// RegisterServer discovers the tools of conn with tools/list and indexes them
// under name. A tool name already owned by another server moves to this one.
func (r *Registry) RegisterServer(ctx context.Context, name string, conn Caller) error {
	raw, err := conn.Request(ctx, methodToolsList, struct{}{})
	if err != nil {
		return fmt.Errorf("listing tools of %s: %w", name, err)
	}

	var listed struct {
		Tools []Capability `json:"tools"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &listed); err != nil {
			return fmt.Errorf("decoding tools of %s: %w", name, err)
		}
	}

	tools := make([]Capability, 0, len(listed.Tools))
	for _, t := range listed.Tools {
		if t.Name == "" {
			r.log.Warn("skipping unnamed tool", "server", name)
			continue
		}
		if len(t.InputSchema) == 0 || string(t.InputSchema) == "null" {
			t.InputSchema = json.RawMessage(`{}`)
		}
		tools = append(tools, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	srv := r.serverLocked(name)
	srv.conn = conn
	srv.tools = tools
	for _, t := range tools {
		r.claimLocked(name, t.Name)
	}
	r.log.Debug("registered tool server", "server", name, "tools", len(tools))
	return nil
}

// RegisterToolManually adds a tool with no live server behind it. Calling it
// returns a placeholder result.
func (r *Registry) RegisterToolManually(serverName string, c Capability) {
	if len(c.InputSchema) == 0 {
		c.InputSchema = json.RawMessage(`{}`)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	srv := r.serverLocked(serverName)
	replaced := false
	for i := range srv.tools {
		if srv.tools[i].Name == c.Name {
			srv.tools[i] = c
			replaced = true
		}
	}
	if !replaced {
		srv.tools = append(srv.tools, c)
	}
	r.claimLocked(serverName, c.Name)
}

func (r *Registry) serverLocked(name string) *server {
	srv, ok := r.servers[name]
	if !ok {
		srv = &server{name: name}
		r.servers[name] = srv
		r.order = append(r.order, name)
	}
	return srv
}

func (r *Registry) claimLocked(serverName, tool string) {
	if prev, ok := r.owners[tool]; ok && prev != serverName {
		r.log.Warn("tool name collision, later registration wins",
			"tool", tool, "previous", prev, "server", serverName)
	}
	r.owners[tool] = serverName
}

// AvailableTools returns every routable tool. Servers come in registration
// order and tools in the order their server listed them. A tool shadowed by a
// later registration appears once, under its current owner.
func (r *Registry) AvailableTools() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Capability
	for _, name := range r.order {
		for _, t := range r.servers[name].tools {
			if r.owners[t.Name] == name {
				out = append(out, t)
			}
		}
	}
	return out
}

// Servers returns the registered server names in registration order.
func (r *Registry) Servers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// CallTool runs one tool. See the package documentation for the error split.
func (r *Registry) CallTool(ctx context.Context, call ToolCall) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "registry.call_tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", call.Name))

	r.mu.RLock()
	owner, ok := r.owners[call.Name]
	var conn Caller
	if ok {
		conn = r.servers[owner].conn
	}
	r.mu.RUnlock()

	if !ok {
		return Result{Content: "Unknown tool: " + call.Name, IsError: true}, nil
	}
	span.SetAttributes(attribute.String("tool.server", owner))
	if conn == nil {
		return Result{Content: fmt.Sprintf("Tool %s is registered without a server; no result available.", call.Name)}, nil
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	key, cacheable := r.cacheKey(call.Name, args)
	if cacheable {
		r.cacheMu.Lock()
		hit, found := r.cache[key]
		r.cacheMu.Unlock()
		if found {
			span.SetAttributes(attribute.Bool("tool.cached", true))
			observe.Logger(ctx, r.log).Debug("tool cache hit", "tool", call.Name)
			return hit, nil
		}
	}

	raw, err := conn.Request(ctx, methodToolsCall, mcp.CallToolParams{Name: call.Name, Arguments: args})
	if err != nil {
		serr := &ServerError{Server: owner, Tool: call.Name, Err: err}
		observe.Fail(span, serr)
		return Result{}, serr
	}

	res, err := decodeCallResult(raw)
	if err != nil {
		serr := &ServerError{Server: owner, Tool: call.Name, Err: err}
		observe.Fail(span, serr)
		return Result{}, serr
	}

	if cacheable && !res.IsError {
		r.cacheMu.Lock()
		r.cache[key] = res
		r.cacheMu.Unlock()
	}
	return res, nil
}

func (r *Registry) cacheKey(tool string, args json.RawMessage) (string, bool) {
	if !r.cacheable[tool] {
		return "", false
	}
	canonical, err := canonicalJSON(args)
	if err != nil {
		return "", false
	}
	return tool + "\x00" + canonical, true
}

// canonicalJSON re-encodes v so that object keys are sorted and insignificant
// whitespace is gone.
func canonicalJSON(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// callResult is the tools/call result envelope. Only text blocks are kept;
// blocks of any other type are skipped.
type callResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func decodeCallResult(raw json.RawMessage) (Result, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Result{Content: NoContent}, nil
	}
	var parsed callResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, fmt.Errorf("decoding tools/call result: %w", err)
	}

	var parts []string
	for _, c := range parsed.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if text == "" {
		text = NoContent
	}
	return Result{Content: text, IsError: parsed.IsError}, nil
}

// Shutdown stops every server connection and forgets all state, including
// the result cache. Every connection is stopped even if some fail.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	conns := make(map[string]Caller, len(r.servers))
	for name, srv := range r.servers {
		if srv.conn != nil {
			conns[name] = srv.conn
		}
	}
	r.servers = make(map[string]*server)
	r.owners = make(map[string]string)
	r.order = nil
	r.mu.Unlock()

	r.cacheMu.Lock()
	r.cache = make(map[string]Result)
	r.cacheMu.Unlock()

	var errs []error
	for name, conn := range conns {
		if err := conn.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
