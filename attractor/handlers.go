// ABOUTME: Common handler interface, registry, and shape-to-type mapping for the pipeline runner.
// ABOUTME: Built-in handlers implement NodeHandler and are registered via DefaultHandlerRegistry.
package attractor

import (
	"context"
)

// NodeHandler is the interface every node handler implements. The runner
// dispatches to the appropriate handler based on a node's resolved type.
type NodeHandler interface {
	// Type returns the handler type string (e.g. "start", "conditional", "tool").
	Type() string

	// Execute runs the handler logic for the given node. ctx is the Go context
	// for cancellation; node is the graph node being executed; pctx is the
	// pipeline's shared Context (or a clone, for parallel branches); graph is
	// the full, immutable graph the node belongs to. The handler may append to
	// pctx's log in lieu of a separate logs root.
	Execute(ctx context.Context, node *Node, pctx *Context, graph *Graph) (*Outcome, error)
}

// HandlerRegistry maps handler type strings to handler instances.
type HandlerRegistry struct {
	handlers map[string]NodeHandler
	fallback string
}

// NewHandlerRegistry creates a new empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]NodeHandler),
	}
}

// Register adds a handler to the registry, keyed by its Type() string.
// Registering for an already-registered type replaces the previous handler.
func (r *HandlerRegistry) Register(handler NodeHandler) {
	r.handlers[handler.Type()] = handler
}

// Get returns the handler registered for the given type string, or nil if not found.
func (r *HandlerRegistry) Get(typeName string) NodeHandler {
	return r.handlers[typeName]
}

// SetDefault configures the handler type returned when neither a node's type
// attribute nor its shape resolves to a registered handler.
func (r *HandlerRegistry) SetDefault(typeName string) {
	r.fallback = typeName
}

// Resolve finds the appropriate handler for a node using the resolution order:
//  1. The node's explicit "type" attribute, if registered.
//  2. Shape-based resolution via the fixed shape-to-handler-type table.
//  3. The configured default handler, if any.
//
// Returns nil if no handler can be resolved.
func (r *HandlerRegistry) Resolve(node *Node) NodeHandler {
	if typeName := node.Attrs.GetString("type", ""); typeName != "" {
		if h, exists := r.handlers[typeName]; exists {
			return h
		}
	}

	if shape := node.Attrs.GetString("shape", ""); shape != "" {
		if handlerType, ok := shapeToType[shape]; ok {
			if h, exists := r.handlers[handlerType]; exists {
				return h
			}
		}
	}

	if r.fallback != "" {
		if h, exists := r.handlers[r.fallback]; exists {
			return h
		}
	}

	return nil
}

// DefaultHandlerRegistry creates a registry with all built-in handlers registered,
// defaulting unresolved nodes to the codergen handler.
func DefaultHandlerRegistry() *HandlerRegistry {
	reg := NewHandlerRegistry()
	reg.Register(&StartHandler{})
	reg.Register(&ExitHandler{})
	reg.Register(&CodergenHandler{})
	reg.Register(&ConditionalHandler{})
	reg.Register(&ParallelHandler{})
	reg.Register(&FanInHandler{})
	reg.Register(&ToolHandler{})
	reg.Register(&ManagerLoopHandler{})
	reg.Register(&WaitForHumanHandler{})
	reg.SetDefault("codergen")
	return reg
}

// shapeToType maps Graphviz shape names to handler type strings.
var shapeToType = map[string]string{
	"Mdiamond":      "start",
	"Msquare":       "exit",
	"box":           "codergen",
	"diamond":       "conditional",
	"component":     "parallel",
	"tripleoctagon": "parallel.fan_in",
	"parallelogram": "tool",
	"house":         "stack.manager_loop",
	"hexagon":       "wait.human",
}

// ShapeToHandlerType returns the handler type string for a given Graphviz shape.
// Unknown shapes default to "codergen".
func ShapeToHandlerType(shape string) string {
	if t, ok := shapeToType[shape]; ok {
		return t
	}
	return "codergen"
}
