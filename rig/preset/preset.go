// Package preset loads TOML import presets and translates them into
// importer and mesh import options, so repeated import setups can live in
// files instead of code.
package preset

import (
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/Carmen-Shannon/skelport-go/rig"
	"github.com/Carmen-Shannon/skelport-go/rig/loader"
)

// Preset is one named import configuration.
type Preset struct {
	Name    string        `toml:"name"`
	Import  ImportConfig  `toml:"import"`
	Meshes  MeshConfig    `toml:"meshes"`
	Preview PreviewConfig `toml:"preview"`
}

// ImportConfig controls the importer itself. Pointer fields distinguish
// "unset" from an explicit value so the importer defaults stay in charge.
type ImportConfig struct {
	Animation  *bool    `toml:"animation"`
	FrameStart *float64 `toml:"frame_start"`
	FrameEnd   *float64 `toml:"frame_end"`
	Workers    int      `toml:"workers"`
	Parent     string   `toml:"parent"`
}

// MeshConfig controls which mesh nodes get imported.
type MeshConfig struct {
	Exclude     []string `toml:"exclude"`
	SkinnedOnly bool     `toml:"skinned_only"`
}

// PreviewConfig carries sizing for the preview renderer.
type PreviewConfig struct {
	Size        int `toml:"size"`
	Supersample int `toml:"supersample"`
}

// Load reads and parses a preset file.
//
// Parameters:
//   - path: path to the TOML preset
//
// Returns:
//   - *Preset: the parsed preset
//   - error: any error encountered while reading or parsing
func Load(path string) (*Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open preset %s", path)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a preset from a reader.
//
// Parameters:
//   - r: reader holding TOML preset data
//
// Returns:
//   - *Preset: the parsed preset
//   - error: any error encountered while parsing or validating
func Parse(r io.Reader) (*Preset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read preset")
	}
	var p Preset
	if err := toml.Unmarshal(data, &p); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, errors.Wrapf(err, "failed to parse preset at %d:%d", row, col)
		}
		return nil, errors.Wrap(err, "failed to parse preset")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Preset) validate() error {
	if (p.Import.FrameStart == nil) != (p.Import.FrameEnd == nil) {
		return errors.New("preset frame range needs both frame_start and frame_end")
	}
	if p.Import.FrameStart != nil && *p.Import.FrameStart > *p.Import.FrameEnd {
		return errors.Errorf("preset frame range is inverted: %v > %v", *p.Import.FrameStart, *p.Import.FrameEnd)
	}
	if p.Import.Workers < 0 {
		return errors.Errorf("preset worker count %d is negative", p.Import.Workers)
	}
	if p.Preview.Size < 0 || p.Preview.Supersample < 0 {
		return errors.New("preset preview sizes cannot be negative")
	}
	return nil
}

// ImporterOptions translates the preset into importer options. Unset
// fields contribute nothing so the importer's own defaults apply.
//
// Returns:
//   - []rig.ImporterBuilderOption: the options to pass to rig.NewImporter
func (p *Preset) ImporterOptions() []rig.ImporterBuilderOption {
	var opts []rig.ImporterBuilderOption
	if p.Import.Animation != nil {
		opts = append(opts, rig.WithAnimation(*p.Import.Animation))
	}
	if p.Import.FrameStart != nil && p.Import.FrameEnd != nil {
		opts = append(opts, rig.WithFrameRange(*p.Import.FrameStart, *p.Import.FrameEnd))
	}
	if p.Import.Workers > 0 {
		opts = append(opts, rig.WithComputeWorkers(p.Import.Workers))
	}
	if p.Import.Parent != "" {
		opts = append(opts, rig.WithParentPath(p.Import.Parent))
	}
	return opts
}

// MeshImportOptions translates the preset's mesh section into mesh import
// options.
//
// Returns:
//   - []loader.MeshImportOption: the options to pass to Source.ImportMeshes
func (p *Preset) MeshImportOptions() []loader.MeshImportOption {
	var opts []loader.MeshImportOption
	if len(p.Meshes.Exclude) > 0 {
		opts = append(opts, loader.WithExcludePaths(p.Meshes.Exclude...))
	}
	if p.Meshes.SkinnedOnly {
		opts = append(opts, loader.WithSkinnedOnly())
	}
	return opts
}
