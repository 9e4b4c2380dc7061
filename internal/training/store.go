package training

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cuongbtq/job-triage/internal/classifier"
	"github.com/cuongbtq/job-triage/internal/evaluation"
	"github.com/cuongbtq/job-triage/internal/features"
	"github.com/gofrs/flock"
)

// Fixed artifact file names inside the artifact directory
const (
	ModelFile   = "model.gob"
	EncoderFile = "label_encoder.json"
	ReportFile  = "report.json"

	lockFile      = ".artifacts.lock"
	lockRetryWait = 50 * time.Millisecond
)

var (
	ErrArtifactNotFound = errors.New("model artifact not found")
	ErrArtifactCorrupt  = errors.New("model artifact is corrupt")
)

// modelBlob is the gob payload of ModelFile
type modelBlob struct {
	Extractor *features.FittedExtractor
	Model     classifier.Model
}

// Store persists artifacts as three files. Writers take an exclusive file
// lock and replace each file by rename, readers take a shared lock, so a
// reader never sees a mix of two runs.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

// Save writes the artifact, replacing any previous one
func (s *Store) Save(ctx context.Context, a *Artifact) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	var blob bytes.Buffer
	if err := gob.NewEncoder(&blob).Encode(modelBlob{Extractor: a.Extractor, Model: a.Model}); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	enc, err := json.MarshalIndent(a.Encoder, "", "  ")
	if err != nil {
		return fmt.Errorf("encode label encoder: %w", err)
	}
	report, err := json.MarshalIndent(a.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	unlock, err := s.lock(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	for _, f := range []struct {
		name string
		data []byte
	}{
		{ModelFile, blob.Bytes()},
		{EncoderFile, enc},
		{ReportFile, report},
	} {
		if err := writeAtomic(filepath.Join(s.dir, f.name), f.data); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the full artifact. A missing file yields ErrArtifactNotFound,
// an undecodable one ErrArtifactCorrupt.
func (s *Store) Load(ctx context.Context) (*Artifact, error) {
	unlock, err := s.lock(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var blob modelBlob
	if err := s.read(ModelFile, func(data []byte) error {
		return gob.NewDecoder(bytes.NewReader(data)).Decode(&blob)
	}); err != nil {
		return nil, err
	}
	var enc LabelEncoder
	if err := s.read(EncoderFile, func(data []byte) error { return json.Unmarshal(data, &enc) }); err != nil {
		return nil, err
	}
	var report evaluation.Report
	if err := s.read(ReportFile, func(data []byte) error { return json.Unmarshal(data, &report) }); err != nil {
		return nil, err
	}

	if blob.Extractor == nil || enc.Len() < 2 {
		return nil, fmt.Errorf("%w: incomplete model payload", ErrArtifactCorrupt)
	}
	if _, err := blob.Model.Classifier(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	return &Artifact{Extractor: blob.Extractor, Model: blob.Model, Encoder: &enc, Report: report}, nil
}

// LoadReport reads only the evaluation report
func (s *Store) LoadReport(ctx context.Context) (*evaluation.Report, error) {
	unlock, err := s.lock(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var report evaluation.Report
	if err := s.read(ReportFile, func(data []byte) error { return json.Unmarshal(data, &report) }); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Store) read(name string, decode func([]byte) error) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := decode(data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, name, err)
	}
	return nil
}

// lock takes a fresh file lock per call; a shared flock.Flock would treat
// a second acquisition in the same process as already held.
func (s *Store) lock(ctx context.Context, exclusive bool) (func(), error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	fl := flock.New(filepath.Join(s.dir, lockFile))

	var ok bool
	var err error
	if exclusive {
		ok, err = fl.TryLockContext(ctx, lockRetryWait)
	} else {
		ok, err = fl.TryRLockContext(ctx, lockRetryWait)
	}
	if err != nil {
		return nil, fmt.Errorf("lock artifacts: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("lock artifacts: not acquired")
	}
	return func() { _ = fl.Unlock() }, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
