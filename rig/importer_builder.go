package rig

import (
	"os"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/skelport-go/rig/graph"
	"github.com/Carmen-Shannon/skelport-go/rig/model"
	"github.com/charmbracelet/log"
)

// ImporterBuilderOption is a functional option for configuring an Importer via NewImporter.
type ImporterBuilderOption func(*importerImpl)

// WithGraph is an option builder that sets the graph the importer builds
// into. Without it a fresh graph is created.
//
// Parameters:
//   - g: the target graph
//
// Returns:
//   - ImporterBuilderOption: a function that applies the graph option to an importer
func WithGraph(g graph.Graph) ImporterBuilderOption {
	return func(imp *importerImpl) {
		imp.g = g
	}
}

// WithLogger is an option builder that sets the logger used by the importer
// and its components.
//
// Parameters:
//   - logger: the logger instance
//
// Returns:
//   - ImporterBuilderOption: a function that applies the logger option to an importer
func WithLogger(logger *log.Logger) ImporterBuilderOption {
	return func(imp *importerImpl) {
		imp.logger = logger
	}
}

// WithAnimation is an option builder that toggles animation sampling. When
// disabled, skeletons import as a static earliest-time pose.
//
// Parameters:
//   - enabled: whether to sample and write animation
//
// Returns:
//   - ImporterBuilderOption: a function that applies the animation option to an importer
func WithAnimation(enabled bool) ImporterBuilderOption {
	return func(imp *importerImpl) {
		imp.readAnim = enabled
	}
}

// WithFrameRange is an option builder that restricts animation sampling to
// an inclusive time range.
//
// Parameters:
//   - start: the first time to sample
//   - end: the last time to sample
//
// Returns:
//   - ImporterBuilderOption: a function that applies the range option to an importer
func WithFrameRange(start, end float64) ImporterBuilderOption {
	return func(imp *importerImpl) {
		imp.frameRange = &model.TimeRange{Start: start, End: end}
	}
}

// WithComputeWorkers is an option builder that sets the number of workers
// used for per-mesh bind preparation. Values below two disable the pool.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - ImporterBuilderOption: a function that applies the worker option to an importer
func WithComputeWorkers(n int) ImporterBuilderOption {
	return func(imp *importerImpl) {
		imp.computeWorkers = n
	}
}

// WithParentPath is an option builder that parents imported skeletons under
// an existing node instead of the graph root.
//
// Parameters:
//   - path: the graph path of the parent node
//
// Returns:
//   - ImporterBuilderOption: a function that applies the parent option to an importer
func WithParentPath(path string) ImporterBuilderOption {
	return func(imp *importerImpl) {
		imp.parentPath = path
	}
}

// NewImporter creates an Importer with the provided options applied.
// Animation sampling defaults to enabled and bind preparation to one worker
// per spare CPU.
//
// Parameters:
//   - options: a variadic list of ImporterBuilderOption functions
//
// Returns:
//   - Importer: the configured importer
func NewImporter(options ...ImporterBuilderOption) Importer {
	imp := &importerImpl{
		readAnim:       true,
		computeWorkers: defaultComputeWorkers(),
	}
	for _, option := range options {
		option(imp)
	}

	if imp.logger == nil {
		imp.logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel, Prefix: "rig"})
	}
	if imp.g == nil {
		imp.g = graph.NewGraph()
	}
	imp.ctx = NewImportContext(imp.g)
	if imp.computeWorkers > 1 {
		imp.computePool = worker.NewDynamicWorkerPool(imp.computeWorkers, 256, 1*time.Second)
	}

	imp.joints = newJointHierarchyBuilder(imp.logger)
	imp.rest = newRestStateApplier(imp.logger)
	imp.anim = newAnimSampler(imp.logger, imp.readAnim, imp.frameRange)
	imp.pose = newBindPoseRecorder(imp.logger)
	imp.binder = newSkinBinder(imp.logger)
	return imp
}
