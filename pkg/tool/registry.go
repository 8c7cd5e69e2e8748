package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// ExternalPrefix is reserved for dynamically discovered tools. Built-in
// registrations must not use it; external registrations must.
const ExternalPrefix = "ext__"

// Registry maps tool names to descriptors. It is built once at startup and
// safe for concurrent reads afterwards.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Descriptor
	schemas map[string]*gojsonschema.Schema
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]*Descriptor),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register registers a built-in tool descriptor.
func (r *Registry) Register(d *Descriptor) error {
	if strings.HasPrefix(d.Name, ExternalPrefix) {
		return fmt.Errorf("tool name %q uses the reserved external prefix", d.Name)
	}
	return r.register(d)
}

// RegisterExternal registers a dynamically discovered tool. The name must
// carry the reserved prefix so externals are distinguishable from
// built-ins.
func (r *Registry) RegisterExternal(d *Descriptor) error {
	if !strings.HasPrefix(d.Name, ExternalPrefix) {
		return fmt.Errorf("external tool name %q must use the %q prefix", d.Name, ExternalPrefix)
	}
	return r.register(d)
}

func (r *Registry) register(d *Descriptor) error {
	if err := validateDescriptor(d); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(d.Schema)
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", d.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool already registered: %s", d.Name)
	}

	r.tools[d.Name] = d
	r.schemas[d.Name] = schema

	log.Info().Str("tool", d.Name).Str("kind", string(d.Kind)).Msg("Tool registered")

	return nil
}

// Get returns a descriptor by name.
func (r *Registry) Get(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return d, nil
}

// List returns all registered descriptors sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		tools = append(tools, d)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Kind returns the kind of a registered tool, or KindThink for unknown
// names so policy checks fail closed at validation instead.
func (r *Registry) Kind(name string) Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.tools[name]; ok {
		return d.Kind
	}
	return KindThink
}

// Bind validates a call request's raw arguments against the tool's schema
// and returns a bound invocation. Any failure is a ValidationFailed fault;
// bind failures never reach the policy pipeline.
func (r *Registry) Bind(req CallRequest) (*Invocation, *Fault) {
	r.mu.RLock()
	d := r.tools[req.Name]
	schema := r.schemas[req.Name]
	r.mu.RUnlock()

	if d == nil {
		return nil, NewFault(FaultValidationFailed, "unknown tool: %s", req.Name)
	}

	args := map[string]interface{}{}
	if len(req.RawArguments) > 0 {
		if err := json.Unmarshal(req.RawArguments, &args); err != nil {
			return nil, NewFault(FaultValidationFailed, "malformed arguments for %s: %v", req.Name, err)
		}
	}

	if err := validateArgs(schema, args); err != nil {
		return nil, NewFault(FaultValidationFailed, "invalid arguments for %s: %v", req.Name, err)
	}

	return &Invocation{
		Descriptor: d,
		CallID:     req.CallID,
		Args:       args,
	}, nil
}

func validateDescriptor(d *Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if d.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	valid := false
	for _, k := range AllKinds() {
		if d.Kind == k {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid tool kind: %s", d.Kind)
	}

	if d.Restorable && d.Paths == nil {
		return fmt.Errorf("restorable tool %s must declare mutated paths", d.Name)
	}

	return nil
}
