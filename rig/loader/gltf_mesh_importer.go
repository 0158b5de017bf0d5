package loader

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Carmen-Shannon/skelport-go/common"
	"github.com/Carmen-Shannon/skelport-go/rig"
	"github.com/Carmen-Shannon/skelport-go/rig/graph"
)

type meshImportConfig struct {
	exclude     map[string]bool
	skinnedOnly bool
	parent      graph.Node
}

// MeshImportOption is a function which modifies the mesh import
// configuration.
type MeshImportOption func(*meshImportConfig)

// WithExcludePaths is an option builder that skips the mesh nodes at the
// given source paths.
//
// Parameters:
//   - paths: source node paths to leave out of the import
//
// Returns:
//   - MeshImportOption: the option function
func WithExcludePaths(paths ...string) MeshImportOption {
	return func(cfg *meshImportConfig) {
		if cfg.exclude == nil {
			cfg.exclude = make(map[string]bool, len(paths))
		}
		for _, p := range paths {
			cfg.exclude[p] = true
		}
	}
}

// WithSkinnedOnly is an option builder that restricts the import to mesh
// nodes that reference a skin.
//
// Returns:
//   - MeshImportOption: the option function
func WithSkinnedOnly() MeshImportOption {
	return func(cfg *meshImportConfig) {
		cfg.skinnedOnly = true
	}
}

// WithMeshParent is an option builder that parents imported mesh transforms
// under the given node instead of the graph root.
//
// Parameters:
//   - parent: the node to parent imported meshes under
//
// Returns:
//   - MeshImportOption: the option function
func WithMeshParent(parent graph.Node) MeshImportOption {
	return func(cfg *meshImportConfig) {
		cfg.parent = parent
	}
}

// ImportMeshes creates a transform and mesh shape for every mesh node in
// the document, registering both under their source paths so later binding
// can resolve them. Nodes already registered with the context are left
// alone. Each transform carries the node's flattened world rest transform.
func (s *sourceImpl) ImportMeshes(ctx *rig.ImportContext, options ...MeshImportOption) ([]graph.Node, error) {
	if ctx == nil {
		return nil, errors.New("nil import context")
	}
	var cfg meshImportConfig
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	var out []graph.Node
	for nodeIndex, node := range s.doc.Nodes {
		if node == nil || node.Mesh == nil {
			continue
		}
		if cfg.skinnedOnly && node.Skin == nil {
			continue
		}
		path := s.nodePath(nodeIndex)
		if cfg.exclude[path] {
			continue
		}
		if _, ok := ctx.Node(path); ok {
			continue
		}
		if int(*node.Mesh) >= len(s.doc.Meshes) {
			return out, errors.Errorf("mesh node %s: invalid mesh index %d", path, *node.Mesh)
		}
		points, err := s.meshPoints(int(*node.Mesh))
		if err != nil {
			return out, errors.Wrapf(err, "mesh node %s", path)
		}
		transform, err := s.importMeshNode(ctx, nodeIndex, path, points, cfg.parent)
		if err != nil {
			return out, errors.Wrapf(err, "mesh node %s", path)
		}
		out = append(out, transform)
	}
	return out, nil
}

// meshPoints concatenates the POSITION data of all primitives in primitive
// order, matching the point layout the skinning queries report.
func (s *sourceImpl) meshPoints(meshIndex int) ([]mgl64.Vec3, error) {
	mesh := s.doc.Meshes[meshIndex]
	var out []mgl64.Vec3
	for pi, prim := range mesh.Primitives {
		posIndex, ok := prim.Attributes["POSITION"]
		if !ok {
			continue
		}
		if int(posIndex) >= len(s.doc.Accessors) {
			return nil, errors.Errorf("primitive %d: invalid position accessor index %d", pi, posIndex)
		}
		positions, err := modeler.ReadPosition(s.doc, s.doc.Accessors[posIndex], [][3]float32{})
		if err != nil {
			return nil, errors.Wrapf(err, "primitive %d positions", pi)
		}
		for _, p := range positions {
			out = append(out, vec3From(p))
		}
	}
	return out, nil
}

// importMeshNode builds a transform plus shape pair for one mesh node and
// registers them with the context.
func (s *sourceImpl) importMeshNode(ctx *rig.ImportContext, nodeIndex int, path string, points []mgl64.Vec3, parent graph.Node) (graph.Node, error) {
	world := s.globalRestMatrix(nodeIndex)
	translate, rotate, scale, ok := common.DecomposeTRS(world)
	if !ok {
		translate, rotate = mgl64.Vec3{}, mgl64.Vec3{}
		scale = mgl64.Vec3{1, 1, 1}
	}

	name := nodeName(s.doc, nodeIndex)
	shapeName := name + "Shape"

	mod := ctx.Graph().NewModifier()
	transform, err := mod.CreateNode(graph.NodeTypeTransform, name, parent)
	if err != nil {
		return nil, err
	}
	mod.Set(transform.Plug("translateX"), translate.X())
	mod.Set(transform.Plug("translateY"), translate.Y())
	mod.Set(transform.Plug("translateZ"), translate.Z())
	mod.Set(transform.Plug("rotateX"), rotate.X())
	mod.Set(transform.Plug("rotateY"), rotate.Y())
	mod.Set(transform.Plug("rotateZ"), rotate.Z())
	mod.Set(transform.Plug("scaleX"), scale.X())
	mod.Set(transform.Plug("scaleY"), scale.Y())
	mod.Set(transform.Plug("scaleZ"), scale.Z())

	shape, err := mod.CreateNode(graph.NodeTypeMesh, shapeName, transform)
	if err != nil {
		return nil, err
	}
	mod.Set(shape.Plug("points"), points)
	if err := mod.Commit(); err != nil {
		return nil, err
	}

	ctx.RegisterNode(path, transform)
	ctx.RegisterNode(path+"/"+shapeName, shape)
	return transform, nil
}

// globalRestMatrix flattens a node's rest transform through its ancestors.
func (s *sourceImpl) globalRestMatrix(nodeIndex int) mgl64.Mat4 {
	if nodeIndex < 0 || nodeIndex >= len(s.doc.Nodes) {
		return mgl64.Ident4()
	}
	m := nodeRestTRS(s.doc.Nodes[nodeIndex]).matrix()
	for p := s.parentOf[nodeIndex]; p >= 0; p = s.parentOf[p] {
		m = nodeRestTRS(s.doc.Nodes[p]).matrix().Mul4(m)
	}
	return m
}
