// Package loader reads glTF and GLB documents and exposes their skins as
// rig.SkeletonQuery and rig.SkinningQuery implementations, so a rig.Importer
// can realize them without knowing the format. It also imports the mesh
// nodes that skin binding later resolves.
package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/Carmen-Shannon/skelport-go/rig"
	"github.com/Carmen-Shannon/skelport-go/rig/graph"
)

// SkinnedRig pairs one skeleton with the skinning descriptions of every mesh
// it drives.
type SkinnedRig struct {
	// Skeleton answers the skeleton side of the rig.
	Skeleton rig.SkeletonQuery
	// Skins answers the per-mesh skinning side, one entry per skinned mesh.
	Skins []rig.SkinningQuery
}

// Source is a parsed glTF document viewed as a set of skinned rigs.
type Source interface {
	// Document returns the underlying document.
	//
	// Returns:
	//   - *gltf.Document: the parsed document
	Document() *gltf.Document

	// Name returns a display name for the source, derived from the scene or
	// the file path.
	//
	// Returns:
	//   - string: the source name
	Name() string

	// Rigs returns one entry per skin in the document.
	//
	// Returns:
	//   - []SkinnedRig: the assembled rigs
	Rigs() []SkinnedRig

	// ImportMeshes creates a transform and mesh shape node for every
	// mesh-bearing document node and registers them with the context under
	// their document paths. Skin bindings resolve meshes through these
	// registrations.
	//
	// Parameters:
	//   - ctx: the import context to create and register nodes with
	//   - options: optional import behavior
	//
	// Returns:
	//   - []graph.Node: the created transform nodes
	//   - error: if node creation fails
	ImportMeshes(ctx *rig.ImportContext, options ...MeshImportOption) ([]graph.Node, error)
}

var _ Source = &sourceImpl{}

type sourceImpl struct {
	doc  *gltf.Document
	path string

	// parentOf maps a node index to its parent node index, -1 for roots.
	parentOf []int
	// nodePaths caches the slash-joined document path of every node.
	nodePaths []string

	rigs []SkinnedRig
}

// Open parses a glTF or GLB file and assembles its rigs.
//
// Parameters:
//   - path: the file path to the glTF or GLB file
//
// Returns:
//   - Source: the assembled source
//   - error: if parsing or rig assembly fails
func Open(path string) (Source, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return newSource(doc, path)
}

// NewSource assembles rigs from an already parsed document.
//
// Parameters:
//   - doc: the parsed document, must not be nil
//
// Returns:
//   - Source: the assembled source
//   - error: if rig assembly fails
func NewSource(doc *gltf.Document) (Source, error) {
	if doc == nil {
		return nil, errors.New("no document loaded")
	}
	return newSource(doc, "")
}

func newSource(doc *gltf.Document, path string) (Source, error) {
	s := &sourceImpl{doc: doc, path: path}
	s.buildNodePaths()

	for skinIndex := range doc.Skins {
		skeleton, err := newSkeletonQuery(s, skinIndex)
		if err != nil {
			return nil, errors.Wrapf(err, "skin %d", skinIndex)
		}

		var skins []rig.SkinningQuery
		for nodeIndex, node := range doc.Nodes {
			if node.Mesh == nil || node.Skin == nil || int(*node.Skin) != skinIndex {
				continue
			}
			sq, err := newSkinningQuery(s, skeleton, nodeIndex)
			if err != nil {
				return nil, errors.Wrapf(err, "skin %d mesh node %d", skinIndex, nodeIndex)
			}
			skins = append(skins, sq)
		}
		s.rigs = append(s.rigs, SkinnedRig{Skeleton: skeleton, Skins: skins})
	}
	return s, nil
}

func (s *sourceImpl) Document() *gltf.Document {
	return s.doc
}

func (s *sourceImpl) Name() string {
	doc := s.doc
	if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
		if name := doc.Scenes[*doc.Scene].Name; name != "" {
			return name
		}
	}
	if s.path != "" {
		base := filepath.Base(s.path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return "unnamed_source"
}

func (s *sourceImpl) Rigs() []SkinnedRig {
	return s.rigs
}

// buildNodePaths derives a parent table and a stable document path for every
// node. Nodes reachable from several parents keep the first parent seen;
// the glTF node graph is expected to be a tree.
func (s *sourceImpl) buildNodePaths() {
	doc := s.doc
	s.parentOf = make([]int, len(doc.Nodes))
	for i := range s.parentOf {
		s.parentOf[i] = -1
	}
	for parent, node := range doc.Nodes {
		for _, child := range node.Children {
			if int(child) < len(s.parentOf) && s.parentOf[child] < 0 {
				s.parentOf[child] = parent
			}
		}
	}

	s.nodePaths = make([]string, len(doc.Nodes))
	for i := range doc.Nodes {
		s.nodePaths[i] = s.buildPath(i)
	}
}

func (s *sourceImpl) buildPath(index int) string {
	if s.nodePaths[index] != "" {
		return s.nodePaths[index]
	}
	name := nodeName(s.doc, index)
	if parent := s.parentOf[index]; parent >= 0 {
		s.nodePaths[index] = s.buildPath(parent) + "/" + name
	} else {
		s.nodePaths[index] = "/" + name
	}
	return s.nodePaths[index]
}

// nodePath returns the document path of a node.
func (s *sourceImpl) nodePath(index int) string {
	if index < 0 || index >= len(s.nodePaths) {
		return ""
	}
	return s.nodePaths[index]
}

// nodeName returns a node's name, synthesizing one from the index when the
// document leaves it empty.
func nodeName(doc *gltf.Document, index int) string {
	if index >= 0 && index < len(doc.Nodes) && doc.Nodes[index].Name != "" {
		return doc.Nodes[index].Name
	}
	return fmt.Sprintf("node_%d", index)
}
