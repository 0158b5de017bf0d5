package rig

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/skelport-go/rig/graph"
	"github.com/charmbracelet/log"
)

// jointHierarchyBuilder materializes the skeleton's ordered joint list as
// joint nodes parented according to its topology.
type jointHierarchyBuilder interface {
	// BuildJoints creates one joint node per joint entry under the given
	// container. Placeholder entries (empty paths) produce a nil slot so the
	// result stays aligned with the source joint order.
	//
	// Parameters:
	//   - q: the skeleton to realize
	//   - container: the parent node for root joints
	//   - ctx: the import context to register created joints with
	//
	// Returns:
	//   - []graph.Node: one node per joint entry, nil for placeholders
	//   - error: a *MissingParentError when a parent entry cannot resolve
	BuildJoints(q SkeletonQuery, container graph.Node, ctx *ImportContext) ([]graph.Node, error)
}

var _ jointHierarchyBuilder = &jointHierarchyBuilderImpl{}

type jointHierarchyBuilderImpl struct {
	logger *log.Logger
}

// newJointHierarchyBuilder creates a joint hierarchy builder.
//
// Parameters:
//   - logger: the logger for skipped-entry diagnostics
//
// Returns:
//   - jointHierarchyBuilder: the new builder
func newJointHierarchyBuilder(logger *log.Logger) jointHierarchyBuilder {
	return &jointHierarchyBuilderImpl{logger: logger}
}

func (b *jointHierarchyBuilderImpl) BuildJoints(q SkeletonQuery, container graph.Node, ctx *ImportContext) ([]graph.Node, error) {
	paths := q.JointPaths()
	topo := q.Topology()
	if len(topo) != len(paths) {
		return nil, fmt.Errorf("skeleton %q authors %d joints but %d parent entries", q.Name(), len(paths), len(topo))
	}

	g := ctx.Graph()
	joints := make([]graph.Node, len(paths))
	for i, path := range paths {
		if path == "" {
			b.logger.Debug("skipping placeholder joint entry", "skeleton", q.Name(), "index", i)
			continue
		}

		parent := container
		if p := topo.Parent(i); p >= 0 {
			if p >= i || joints[p] == nil {
				return nil, &MissingParentError{JointPath: path, ParentIndex: p}
			}
			parent = joints[p]
		}

		mod := g.NewModifier()
		n, err := mod.CreateNode(graph.NodeTypeJoint, nodeNameFromPath(path), parent)
		if err != nil {
			return nil, fmt.Errorf("creating joint %q: %w", path, err)
		}
		if err := mod.Commit(); err != nil {
			return nil, fmt.Errorf("creating joint %q: %w", path, err)
		}
		ctx.RegisterNode(path, n)
		joints[i] = n
	}
	return joints, nil
}

// nodeNameFromPath derives a node name from the last component of a source
// path.
func nodeNameFromPath(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
