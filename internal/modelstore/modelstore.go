// Package modelstore persists fitted regressors as compressed JSON artifacts,
// one file per (nutrient, algorithm).
package modelstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/healthfusion/nutriwaste/internal/analytics/regression"
	"github.com/healthfusion/nutriwaste/internal/compression"
	"github.com/healthfusion/nutriwaste/internal/dataset"
	"github.com/healthfusion/nutriwaste/internal/nutrient"
)

const (
	// Extension is the artifact file suffix
	Extension = ".model"

	formatVersion = 1
)

var magic = []byte("NWMD")

var (
	// ErrModelNotFound is returned when no artifact exists for a key
	ErrModelNotFound = errors.New("model not found")
	// ErrCorruptArtifact is returned for files that are not model artifacts
	ErrCorruptArtifact = errors.New("corrupt model artifact")
)

// Metadata describes a stored artifact
type Metadata struct {
	Nutrient  nutrient.Nutrient      `json:"nutrient"`
	Algorithm nutrient.Algorithm     `json:"algorithm"`
	Lags      int                    `json:"lags"`
	TrainedAt time.Time              `json:"trained_at"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Path      string                 `json:"-"`
}

type envelope struct {
	Metadata
	Model json.RawMessage `json:"model"`
}

// Store reads and writes artifacts under a directory
type Store struct {
	dir        string
	compressor compression.Compressor
}

// New creates a store writing with the given codec
func New(dir string, algo compression.Algorithm) (*Store, error) {
	c, err := compression.GetCompressor(algo)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, compressor: c}, nil
}

// Dir returns the artifact directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the artifact path for a key
func (s *Store) Path(n nutrient.Nutrient, a nutrient.Algorithm) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s%s", n, a, Extension))
}

// Exists reports whether an artifact is present for the key
func (s *Store) Exists(n nutrient.Nutrient, a nutrient.Algorithm) bool {
	_, err := os.Stat(s.Path(n, a))
	return err == nil
}

// Save serialises model and atomically replaces any previous artifact
func (s *Store) Save(n nutrient.Nutrient, a nutrient.Algorithm, lags int, model regression.Regressor) (*Metadata, error) {
	body, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s model: %w", a, err)
	}

	env := envelope{
		Metadata: Metadata{
			Nutrient:  n,
			Algorithm: a,
			Lags:      lags,
			TrainedAt: time.Now().UTC(),
			Params:    model.Params(),
		},
		Model: body,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	compressed, err := s.compressor.Compress(payload)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(magic)
	buf.WriteByte(formatVersion)
	buf.WriteByte(byte(s.compressor.Algorithm()))
	buf.Write(compressed)

	path := s.Path(n, a)
	if err := dataset.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}

	env.Metadata.Path = path
	return &env.Metadata, nil
}

// Load restores the artifact for a key through the regressor registry
func (s *Store) Load(n nutrient.Nutrient, a nutrient.Algorithm) (regression.Regressor, *Metadata, error) {
	env, err := s.read(s.Path(n, a))
	if err != nil {
		return nil, nil, err
	}

	model, err := regression.NewRegressor(string(env.Algorithm), regression.DefaultParams())
	if err != nil {
		return nil, nil, err
	}
	if err := json.Unmarshal(env.Model, model); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	return model, &env.Metadata, nil
}

// List returns the metadata of every artifact, ordered by file name.
// Unreadable files are skipped.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Extension) && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Metadata, 0, len(names))
	for _, name := range names {
		env, err := s.read(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		out = append(out, env.Metadata)
	}
	return out, nil
}

func (s *Store) read(path string) (*envelope, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, filepath.Base(path))
		}
		return nil, err
	}

	header := len(magic) + 2
	if len(raw) < header || !bytes.Equal(raw[:len(magic)], magic) {
		return nil, fmt.Errorf("%w: %s", ErrCorruptArtifact, filepath.Base(path))
	}
	if raw[len(magic)] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptArtifact, raw[len(magic)])
	}

	c, err := compression.GetCompressor(compression.Algorithm(raw[len(magic)+1]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	payload, err := c.Decompress(raw[header:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	env.Metadata.Path = path
	return &env, nil
}
