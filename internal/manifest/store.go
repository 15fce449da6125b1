package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joshdevyn/Runix-sub000/internal/logger"
	runixerrors "github.com/joshdevyn/Runix-sub000/pkg/errors"
)

// Store holds the manifests discovered in a driver directory. It has no
// behavior beyond parsing and validation; process lifecycle lives elsewhere.
type Store struct {
	manifests map[string]Manifest
	logger    *logger.Logger
}

// NewStore returns an empty manifest store.
func NewStore(log *logger.Logger) *Store {
	return &Store{
		manifests: make(map[string]Manifest),
		logger:    log,
	}
}

// Load parses every *.yaml/*.yml manifest in dir, replacing the store's
// current contents. Duplicate driver ids across files are a validation error.
func (s *Store) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return runixerrors.NewValidationError("driver_dir", fmt.Sprintf("read driver directory %s", dir), err)
	}

	loaded := make(map[string]Manifest)
	sources := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		m, err := loadFile(path)
		if err != nil {
			return err
		}

		if prev, exists := sources[m.ID]; exists {
			return runixerrors.NewValidationError("manifest.id",
				fmt.Sprintf("driver id %q declared in both %s and %s", m.ID, prev, path), nil)
		}

		loaded[m.ID] = *m
		sources[m.ID] = path
		if s.logger != nil {
			s.logger.WithFields(map[string]any{"driver": m.ID, "command": m.Command}).Debug("manifest loaded")
		}
	}

	s.manifests = loaded
	return nil
}

// Get returns the manifest for a driver id.
func (s *Store) Get(id string) (Manifest, bool) {
	m, ok := s.manifests[id]
	return m, ok
}

// List returns all manifests sorted by driver id.
func (s *Store) List() []Manifest {
	out := make([]Manifest, 0, len(s.manifests))
	for _, m := range s.manifests {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func loadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, runixerrors.NewParseError(path, 0, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, runixerrors.NewParseError(path, 0, err)
	}

	if err := Validate(&m); err != nil {
		return nil, err
	}

	return &m, nil
}
