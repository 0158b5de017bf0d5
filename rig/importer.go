// Package rig builds live deformation graphs from authored skeletal rigs.
//
// An Importer consumes SkeletonQuery and SkinningQuery views of a source rig
// and materializes the runtime counterpart inside a graph.Graph: a joint
// hierarchy carrying rest state, keyed animation curves, a bind-pose record,
// and skin deformers driving previously imported meshes. Sources stay behind
// the query interfaces, so any format that can answer them (see the loader
// package for a glTF implementation) imports the same way.
package rig

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/skelport-go/common"
	"github.com/Carmen-Shannon/skelport-go/rig/graph"
	"github.com/Carmen-Shannon/skelport-go/rig/model"
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
)

// ImportedSkeleton is the realized form of one skeleton: the container node,
// the joint nodes aligned with the source joint order, and the rest state
// later binds depend on.
type ImportedSkeleton struct {
	// Container is the transform node the joint hierarchy lives under.
	Container graph.Node
	// Joints holds one node per source joint entry, nil for placeholders.
	Joints []graph.Node
	// BindPose is the bind-pose record, nil when no joints were built.
	BindPose graph.Node
	// Paths holds the source path of every joint entry.
	Paths []string
	// RestSkelTransforms holds every joint's skel-space rest transform.
	RestSkelTransforms []mgl64.Mat4
}

// MeshBindResult describes the outcome of binding one mesh.
type MeshBindResult struct {
	// MeshPath is the source path of the mesh.
	MeshPath string
	// Deformer is the created skin deformer, nil when skipped or failed.
	Deformer graph.Node
	// Skipped is true when the mesh was not bindable and left untouched.
	Skipped bool
	// Err is the bind failure, nil on success or skip.
	Err error
}

// Bound reports whether the mesh ended up driven by a deformer.
//
// Returns:
//   - bool: true when the bind succeeded
func (r MeshBindResult) Bound() bool {
	return r.Err == nil && !r.Skipped
}

// ImportedRig bundles a skeleton import with the per-mesh bind outcomes.
type ImportedRig struct {
	// Skeleton is the realized skeleton.
	Skeleton *ImportedSkeleton
	// Meshes holds one result per requested mesh, in request order.
	Meshes []MeshBindResult
}

// FailedMeshes returns the bind results that ended in an error.
//
// Returns:
//   - []MeshBindResult: the failed results, empty when all succeeded
func (r *ImportedRig) FailedMeshes() []MeshBindResult {
	var failed []MeshBindResult
	for _, m := range r.Meshes {
		if m.Err != nil {
			failed = append(failed, m)
		}
	}
	return failed
}

// Importer translates skeletal rigs into a live deformation graph.
type Importer interface {
	// ImportSkeleton realizes one skeleton: joints, rest state, animation,
	// and the bind-pose record. Any component failure aborts the import and
	// is returned; callers should discard the partially built container.
	//
	// Parameters:
	//   - q: the skeleton to import
	//
	// Returns:
	//   - *ImportedSkeleton: the realized skeleton
	//   - error: typed per failing component, see the error types
	ImportSkeleton(q SkeletonQuery) (*ImportedSkeleton, error)

	// BindMesh binds one skinned mesh to a previously imported skeleton.
	// Failures are reported in the result, never panicking sibling work.
	//
	// Parameters:
	//   - skel: the skeleton to bind against
	//   - q: the skinning description
	//
	// Returns:
	//   - MeshBindResult: the bind outcome
	BindMesh(skel *ImportedSkeleton, q SkinningQuery) MeshBindResult

	// BindMeshes binds several meshes against one skeleton. Weight and
	// matrix preparation runs on the compute pool; graph mutations stay
	// serialized. Each mesh fails independently.
	//
	// Parameters:
	//   - skel: the skeleton to bind against
	//   - qs: the skinning descriptions
	//
	// Returns:
	//   - []MeshBindResult: one outcome per description, in order
	BindMeshes(skel *ImportedSkeleton, qs []SkinningQuery) []MeshBindResult

	// ImportRig imports a skeleton and binds its meshes in one call.
	//
	// Parameters:
	//   - q: the skeleton to import
	//   - skins: the skinning descriptions to bind
	//
	// Returns:
	//   - *ImportedRig: the skeleton plus per-mesh outcomes
	//   - error: only when the skeleton itself fails; mesh failures are
	//     reported per result
	ImportRig(q SkeletonQuery, skins []SkinningQuery) (*ImportedRig, error)

	// Graph returns the graph this importer builds into.
	//
	// Returns:
	//   - graph.Graph: the target graph
	Graph() graph.Graph

	// Context returns the import context tracking created nodes.
	//
	// Returns:
	//   - *ImportContext: the context
	Context() *ImportContext
}

var _ Importer = &importerImpl{}

type importerImpl struct {
	mu sync.Mutex

	g   graph.Graph
	ctx *ImportContext

	logger     *log.Logger
	readAnim   bool
	frameRange *model.TimeRange
	parentPath string

	computeWorkers int
	computePool    worker.DynamicWorkerPool

	joints jointHierarchyBuilder
	rest   restStateApplier
	anim   animSampler
	pose   bindPoseRecorder
	binder skinBinder
}

func (imp *importerImpl) Graph() graph.Graph {
	return imp.g
}

func (imp *importerImpl) Context() *ImportContext {
	return imp.ctx
}

func (imp *importerImpl) ImportSkeleton(q SkeletonQuery) (*ImportedSkeleton, error) {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.importSkeleton(q)
}

func (imp *importerImpl) BindMesh(skel *ImportedSkeleton, q SkinningQuery) MeshBindResult {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	deformer, skipped, err := imp.binder.BindSkin(q, skel, imp.ctx)
	return MeshBindResult{MeshPath: q.MeshPath(), Deformer: deformer, Skipped: skipped, Err: err}
}

func (imp *importerImpl) BindMeshes(skel *ImportedSkeleton, qs []SkinningQuery) []MeshBindResult {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.bindMeshes(skel, qs)
}

func (imp *importerImpl) ImportRig(q SkeletonQuery, skins []SkinningQuery) (*ImportedRig, error) {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	skel, err := imp.importSkeleton(q)
	if err != nil {
		return nil, err
	}
	rig := &ImportedRig{Skeleton: skel, Meshes: imp.bindMeshes(skel, skins)}
	for _, m := range rig.Meshes {
		if m.Err != nil {
			imp.logger.Error("mesh bind failed", "mesh", m.MeshPath, "err", m.Err)
		}
	}
	return rig, nil
}

func (imp *importerImpl) importSkeleton(q SkeletonQuery) (*ImportedSkeleton, error) {
	if q == nil {
		return nil, fmt.Errorf("rig: nil skeleton query")
	}
	name := common.Coalesce(q.Name(), "skeleton")
	imp.logger.Info("importing skeleton", "skeleton", name, "joints", len(q.JointPaths()))

	var parent graph.Node
	if imp.parentPath != "" {
		if n, ok := imp.g.NodeByPath(imp.parentPath); ok {
			parent = n
		} else if n, ok := imp.ctx.NodeOrAncestor(imp.parentPath); ok {
			parent = n
		} else {
			imp.logger.Warn("parent path not found, importing under root", "path", imp.parentPath)
		}
	}

	mod := imp.g.NewModifier()
	container, err := mod.CreateNode(graph.NodeTypeTransform, name, parent)
	if err != nil {
		return nil, fmt.Errorf("creating skeleton container: %w", err)
	}
	if err := mod.Commit(); err != nil {
		return nil, fmt.Errorf("creating skeleton container: %w", err)
	}
	imp.ctx.RegisterNode("", container)

	joints, err := imp.joints.BuildJoints(q, container, imp.ctx)
	if err != nil {
		return nil, err
	}
	if err := imp.rest.ApplyRestState(q, joints); err != nil {
		return nil, err
	}
	if err := imp.anim.WriteAnim(q, container, joints, imp.ctx); err != nil {
		return nil, err
	}
	pose, err := imp.pose.RecordBindPose(q, joints, imp.ctx)
	if err != nil {
		return nil, err
	}

	restSkel, err := q.JointSkelTransforms(model.EarliestTime, true)
	if err != nil {
		return nil, fmt.Errorf("evaluating rest transforms for %q: %w", name, err)
	}
	return &ImportedSkeleton{
		Container:          container,
		Joints:             joints,
		BindPose:           pose,
		Paths:              q.JointPaths(),
		RestSkelTransforms: restSkel,
	}, nil
}

func (imp *importerImpl) bindMeshes(skel *ImportedSkeleton, qs []SkinningQuery) []MeshBindResult {
	results := make([]MeshBindResult, len(qs))
	if len(qs) == 0 {
		return results
	}

	type resolved struct {
		transform graph.Node
		shape     graph.Node
	}
	targets := make([]resolved, len(qs))
	preps := make([]*skinPrep, len(qs))
	prepErrs := make([]error, len(qs))

	for i, q := range qs {
		results[i].MeshPath = q.MeshPath()
		transform, shape, ok := imp.binder.ResolveMesh(q, imp.ctx)
		if !ok {
			results[i].Skipped = true
			continue
		}
		targets[i] = resolved{transform: transform, shape: shape}
	}

	// Phase 1: parallel prep. Weight densification and matrix inversion
	// per mesh touch no graph state, so they fan out to the compute pool.
	// A WaitGroup provides the barrier; pool workers are reused across
	// imports.
	var wg sync.WaitGroup
	for i, q := range qs {
		if results[i].Skipped {
			continue
		}
		if imp.computePool == nil || imp.computeWorkers <= 1 {
			preps[i], prepErrs[i] = imp.binder.PrepareBind(q, skel)
			continue
		}
		wg.Add(1)
		iCap, qCap := i, q // capture for closure
		imp.computePool.SubmitTask(worker.Task{
			ID: iCap,
			Do: func() (any, error) {
				defer wg.Done()
				preps[iCap], prepErrs[iCap] = imp.binder.PrepareBind(qCap, skel)
				return nil, nil
			},
		})
	}
	wg.Wait()

	// Phase 2: serial graph mutation.
	for i, q := range qs {
		if results[i].Skipped {
			continue
		}
		if prepErrs[i] != nil {
			results[i].Err = &SkinBindError{MeshPath: q.MeshPath(), Err: prepErrs[i]}
			continue
		}
		deformer, err := imp.binder.BindPrepared(q, preps[i], targets[i].transform, targets[i].shape, skel, imp.ctx)
		if err != nil {
			results[i].Err = &SkinBindError{MeshPath: q.MeshPath(), Err: err}
			continue
		}
		results[i].Deformer = deformer
	}
	return results
}

// defaultComputeWorkers leaves one CPU for the importing goroutine.
func defaultComputeWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}
