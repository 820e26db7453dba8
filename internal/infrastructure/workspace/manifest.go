// Package workspace loads the component manifest and provides the workspace
// catalogue, content fingerprints and issue detection built on it.
package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
	"github.com/relicta-tech/bitsmith/internal/fileutil"
)

// maxManifestSize bounds the manifest file.
const maxManifestSize = 4 << 20

// ManifestNames are searched in order when no manifest is configured.
var ManifestNames = []string{"bitsmith.yaml", "bitsmith.yml", "bitsmith.toml"}

// Manifest is the on-disk component catalogue.
type Manifest struct {
	Components []ComponentDTO `yaml:"components" toml:"components"`
}

// ComponentDTO is the manifest form of a component.
type ComponentDTO struct {
	ID           string    `yaml:"id" toml:"id"`
	Dir          string    `yaml:"dir" toml:"dir"`
	Dependencies []string  `yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`
	Tasks        []TaskDTO `yaml:"tasks,omitempty" toml:"tasks,omitempty"`
}

// TaskDTO is the manifest form of a pipeline task.
type TaskDTO struct {
	Aspect  string   `yaml:"aspect" toml:"aspect"`
	Name    string   `yaml:"name" toml:"name"`
	Kind    string   `yaml:"kind,omitempty" toml:"kind,omitempty"`
	Run     string   `yaml:"run" toml:"run"`
	Outputs []string `yaml:"outputs,omitempty" toml:"outputs,omitempty"`
}

// FindManifest returns the manifest path under root. An explicit name is
// resolved against root and must exist.
func FindManifest(root, name string) (string, error) {
	const op = "workspace.FindManifest"

	if name != "" {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, name)
		}
		if !fileutil.Exists(path) {
			return "", bserrors.NotFound(op, fmt.Sprintf("manifest %s does not exist", path))
		}
		return path, nil
	}
	for _, n := range ManifestNames {
		path := filepath.Join(root, n)
		if fileutil.Exists(path) {
			return path, nil
		}
	}
	return "", bserrors.NotFound(op, fmt.Sprintf("no %s found in %s", strings.Join(ManifestNames, ", "), root))
}

// ParseManifest decodes a manifest; the format follows the file extension.
func ParseManifest(path string) (*Manifest, error) {
	const op = "workspace.ParseManifest"

	data, err := fileutil.ReadFileLimited(path, maxManifestSize)
	if err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to read manifest")
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, bserrors.ValidationWrap(err, op, "invalid toml manifest")
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
			return nil, bserrors.ValidationWrap(err, op, "invalid yaml manifest")
		}
	}
	return &m, nil
}

// ToComponents converts the manifest into domain components.
func (m *Manifest) ToComponents() ([]component.Component, error) {
	const op = "workspace.Manifest.ToComponents"

	seen := make(map[string]bool, len(m.Components))
	out := make([]component.Component, 0, len(m.Components))
	for i, dto := range m.Components {
		id, err := component.ParseID(dto.ID)
		if err != nil {
			return nil, bserrors.ValidationWrap(err, op, fmt.Sprintf("components[%d]", i))
		}
		if id.HasVersion() {
			return nil, bserrors.Validation(op, fmt.Sprintf("components[%d]: id %q must not carry a version", i, dto.ID))
		}
		if seen[id.FullName()] {
			return nil, bserrors.Validation(op, fmt.Sprintf("duplicate component %s", id))
		}
		seen[id.FullName()] = true

		c := component.Component{ID: id, Dir: dto.Dir}
		if c.Dir == "" {
			c.Dir = id.Name
		}
		for _, raw := range dto.Dependencies {
			dep, err := component.ParseID(raw)
			if err != nil {
				return nil, bserrors.ValidationWrap(err, op, fmt.Sprintf("%s: dependency", id))
			}
			c.Dependencies = append(c.Dependencies, dep)
		}

		for j, t := range dto.Tasks {
			task, err := t.toTask()
			if err != nil {
				return nil, bserrors.ValidationWrap(err, op, fmt.Sprintf("%s: tasks[%d]", id, j))
			}
			c.Tasks = append(c.Tasks, task)
		}
		out = append(out, c)
	}
	return out, nil
}

func (t TaskDTO) toTask() (component.TaskSpec, error) {
	if t.Aspect == "" || t.Name == "" {
		return component.TaskSpec{}, fmt.Errorf("aspect and name are required")
	}
	kind := component.TaskKind(t.Kind)
	switch kind {
	case "":
		kind = component.TaskBuild
	case component.TaskBuild, component.TaskTest:
	default:
		return component.TaskSpec{}, fmt.Errorf("unknown task kind %q", t.Kind)
	}
	return component.TaskSpec{
		Aspect:  t.Aspect,
		Name:    t.Name,
		Kind:    kind,
		Run:     t.Run,
		Outputs: t.Outputs,
	}, nil
}

// WriteManifest encodes m at path, used by tests and scaffolding.
func WriteManifest(path string, m *Manifest) error {
	var (
		data []byte
		err  error
	)
	if strings.ToLower(filepath.Ext(path)) == ".toml" {
		data, err = toml.Marshal(m)
	} else {
		data, err = yaml.Marshal(m)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return fileutil.AtomicWriteFile(path, data, 0o644)
}
