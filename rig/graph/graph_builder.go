package graph

import "github.com/google/uuid"

// GraphBuilderOption is a functional option for configuring a Graph via NewGraph.
type GraphBuilderOption func(*graphImpl)

// WithCurrentTime is an option builder that sets the graph's initial
// evaluation time.
//
// Parameters:
//   - t: the initial current time
//
// Returns:
//   - GraphBuilderOption: a function that applies the time option to a graph
func WithCurrentTime(t float64) GraphBuilderOption {
	return func(g *graphImpl) {
		g.currentTime = t
	}
}

// WithCreatedCallback is an option builder that registers a created-node
// callback before any node exists.
//
// Parameters:
//   - fn: the callback invoked after each committed node creation
//
// Returns:
//   - GraphBuilderOption: a function that applies the callback option to a graph
func WithCreatedCallback(fn func(Node)) GraphBuilderOption {
	return func(g *graphImpl) {
		if fn != nil {
			g.onCreated = append(g.onCreated, fn)
		}
	}
}

// NewGraph creates an empty dependency graph holding only the implicit world
// root.
//
// Parameters:
//   - opts: optional configuration
//
// Returns:
//   - Graph: the new graph
func NewGraph(opts ...GraphBuilderOption) Graph {
	g := &graphImpl{
		byName: make(map[string]*node),
		byUUID: make(map[uuid.UUID]*node),
	}
	g.root = newNode(g, NodeTypeTransform, "world")
	g.root.linked = true
	for _, opt := range opts {
		opt(g)
	}
	return g
}
