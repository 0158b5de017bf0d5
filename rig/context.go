package rig

import (
	"strings"
	"sync"

	"github.com/Carmen-Shannon/skelport-go/rig/graph"
)

// ImportContext tracks every node created during an import run and resolves
// source paths back to live graph nodes. Mesh binding relies on it to find
// meshes created by earlier import steps, and callers use it to enumerate
// what an import produced.
//
// The context is safe for concurrent reads; registration is expected from
// the importing goroutine only.
type ImportContext struct {
	mu sync.RWMutex

	g       graph.Graph
	byPath  map[string]graph.Node
	created []graph.Node

	onRegister []func(path string, n graph.Node)
}

// NewImportContext creates an import context bound to the given graph.
//
// Parameters:
//   - g: the graph nodes are created in, must not be nil
//
// Returns:
//   - *ImportContext: the new context
func NewImportContext(g graph.Graph) *ImportContext {
	if g == nil {
		panic("rig: NewImportContext requires a graph")
	}
	return &ImportContext{
		g:      g,
		byPath: make(map[string]graph.Node),
	}
}

// Graph returns the graph this context registers nodes against.
//
// Returns:
//   - graph.Graph: the bound graph
func (c *ImportContext) Graph() graph.Graph {
	return c.g
}

// RegisterNode records a node under its source path and adds it to the list
// of nodes created by this run. Registering an empty path only records
// creation.
//
// Parameters:
//   - path: the source path the node corresponds to, may be empty
//   - n: the created node
func (c *ImportContext) RegisterNode(path string, n graph.Node) {
	if n == nil {
		return
	}
	c.mu.Lock()
	if path != "" {
		c.byPath[path] = n
	}
	c.created = append(c.created, n)
	callbacks := make([]func(string, graph.Node), len(c.onRegister))
	copy(callbacks, c.onRegister)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(path, n)
	}
}

// OnRegister installs a callback fired after every registration, outside the
// context's own lock.
//
// Parameters:
//   - fn: the callback, receiving the source path and node
func (c *ImportContext) OnRegister(fn func(path string, n graph.Node)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRegister = append(c.onRegister, fn)
}

// Node resolves a source path registered earlier in this run.
//
// Parameters:
//   - path: the source path to look up
//
// Returns:
//   - graph.Node: the registered node, nil when absent
//   - bool: whether the path was registered
func (c *ImportContext) Node(path string) (graph.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.byPath[path]
	return n, ok
}

// NodeOrAncestor resolves a source path, walking up to the nearest
// registered ancestor when the exact path is absent. Import steps that
// collapse source hierarchy use this to find the closest surviving parent.
//
// Parameters:
//   - path: the source path to look up
//
// Returns:
//   - graph.Node: the registered node or nearest registered ancestor
//   - bool: whether anything resolved
func (c *ImportContext) NodeOrAncestor(path string) (graph.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for path != "" && path != "/" {
		if n, ok := c.byPath[path]; ok {
			return n, true
		}
		i := strings.LastIndex(path, "/")
		if i <= 0 {
			break
		}
		path = path[:i]
	}
	return nil, false
}

// NewNodes returns every node registered during this run, in registration
// order.
//
// Returns:
//   - []graph.Node: a copy of the creation list
func (c *ImportContext) NewNodes() []graph.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]graph.Node, len(c.created))
	copy(out, c.created)
	return out
}
