package rig

import "fmt"

// MissingParentError reports a joint whose parent entry cannot be resolved to
// a node, either because the parent index does not precede the joint or
// because the parent slot is an unrealized placeholder.
type MissingParentError struct {
	// JointPath is the source path of the joint that failed.
	JointPath string
	// ParentIndex is the unresolvable parent entry.
	ParentIndex int
}

func (e *MissingParentError) Error() string {
	return fmt.Sprintf("joint %q references unresolved parent index %d", e.JointPath, e.ParentIndex)
}

// AnimWriteError reports a failure while writing animation onto a node, such
// as a sample count mismatch or a rejected curve write. Animation failures
// abort the surrounding skeleton import.
type AnimWriteError struct {
	// Node is the name of the node the write targeted.
	Node string
	// Err is the underlying cause.
	Err error
}

func (e *AnimWriteError) Error() string {
	return fmt.Sprintf("writing animation for %q: %v", e.Node, e.Err)
}

func (e *AnimWriteError) Unwrap() error { return e.Err }

// GraphWireError reports a failed structural wiring batch, most notably the
// bind-pose record. The underlying modifier discards the whole batch, so no
// partial wiring remains when this is returned.
type GraphWireError struct {
	// Node is the name of the record being wired.
	Node string
	// Err is the underlying cause.
	Err error
}

func (e *GraphWireError) Error() string {
	return fmt.Sprintf("wiring %q: %v", e.Node, e.Err)
}

func (e *GraphWireError) Unwrap() error { return e.Err }

// SingularBindMatrixError reports a joint whose rest transform cannot be
// inverted while preparing a skin bind.
type SingularBindMatrixError struct {
	// JointIndex is the joint's position in the skeleton's ordered list.
	JointIndex int
	// JointPath is the joint's source path, when known.
	JointPath string
}

func (e *SingularBindMatrixError) Error() string {
	if e.JointPath != "" {
		return fmt.Sprintf("joint %q (index %d) has a singular rest transform", e.JointPath, e.JointIndex)
	}
	return fmt.Sprintf("joint index %d has a singular rest transform", e.JointIndex)
}

// SkinBindError reports a failure while binding one mesh. Binding failures
// are isolated per mesh and never abort sibling meshes.
type SkinBindError struct {
	// MeshPath is the path of the mesh whose bind failed.
	MeshPath string
	// Err is the underlying cause.
	Err error
}

func (e *SkinBindError) Error() string {
	return fmt.Sprintf("binding skin for %q: %v", e.MeshPath, e.Err)
}

func (e *SkinBindError) Unwrap() error { return e.Err }
