package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"assetmanifest/internal/manifest"
)

// DirName is the state directory created under the work directory.
const DirName = ".assetmanifest"

// Store persists round history under:
//
//	<baseDir>/.assetmanifest/rounds/<round-id>/round.json
//	<baseDir>/.assetmanifest/rounds/<round-id>/failure.json
//	<baseDir>/.assetmanifest/cache.json
//
// All writes are atomic and durable (file sync + atomic rename + dir sync).
type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("baseDir is required")
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) rootDir() string {
	return filepath.Join(s.baseDir, DirName)
}

func (s *Store) roundsRootDir() string {
	return filepath.Join(s.rootDir(), "rounds")
}

func (s *Store) roundDir(roundID string) string {
	return filepath.Join(s.roundsRootDir(), roundID)
}

func (s *Store) roundPath(roundID string) string {
	return filepath.Join(s.roundDir(roundID), "round.json")
}

func (s *Store) failurePath(roundID string) string {
	return filepath.Join(s.roundDir(roundID), "failure.json")
}

// CachePath is the file backing the legacy shared manifest cache.
func (s *Store) CachePath() string {
	return filepath.Join(s.rootDir(), "cache.json")
}

// ListRoundIDs returns all round IDs present on disk, sorted.
func (s *Store) ListRoundIDs() ([]string, error) {
	if s == nil {
		return nil, errors.New("nil Store")
	}
	entries, err := os.ReadDir(s.roundsRootDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := strings.TrimSpace(e.Name())
		if name == "" {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

// ListRounds loads every round record ordered by start time, then ID.
func (s *Store) ListRounds() ([]Round, error) {
	ids, err := s.ListRoundIDs()
	if err != nil {
		return nil, err
	}
	rounds := make([]Round, 0, len(ids))
	for _, id := range ids {
		r, err := s.LoadRound(id)
		if err != nil {
			return nil, fmt.Errorf("round %s: %w", id, err)
		}
		rounds = append(rounds, r)
	}
	sort.SliceStable(rounds, func(i, j int) bool {
		if !rounds[i].StartTime.Equal(rounds[j].StartTime) {
			return rounds[i].StartTime.Before(rounds[j].StartTime)
		}
		return rounds[i].RoundID < rounds[j].RoundID
	})
	return rounds, nil
}

func (s *Store) SaveRound(round Round) error {
	if err := round.Validate(); err != nil {
		return fmt.Errorf("invalid round: %w", err)
	}
	if err := ensureDirDurable(s.roundDir(round.RoundID), 0o755); err != nil {
		return fmt.Errorf("ensure round dir: %w", err)
	}
	data, err := jsonMarshalStable(round)
	if err != nil {
		return fmt.Errorf("marshal round: %w", err)
	}
	if err := writeFileAtomicDurable(s.roundPath(round.RoundID), data, 0o644); err != nil {
		return fmt.Errorf("write round: %w", err)
	}
	return nil
}

func (s *Store) LoadRound(roundID string) (Round, error) {
	var round Round
	if strings.TrimSpace(roundID) == "" {
		return Round{}, errors.New("roundID is required")
	}
	if err := readJSONStrict(s.roundPath(roundID), &round); err != nil {
		return Round{}, err
	}
	if err := round.Validate(); err != nil {
		return Round{}, fmt.Errorf("invalid round on disk: %w", err)
	}
	return round, nil
}

func (s *Store) SaveFailure(roundID string, failure Failure) error {
	if strings.TrimSpace(roundID) == "" {
		return errors.New("roundID is required")
	}
	if err := failure.Validate(); err != nil {
		return fmt.Errorf("invalid failure: %w", err)
	}
	if err := ensureDirDurable(s.roundDir(roundID), 0o755); err != nil {
		return fmt.Errorf("ensure round dir: %w", err)
	}
	data, err := jsonMarshalStable(failure)
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}
	if err := writeFileAtomicDurable(s.failurePath(roundID), data, 0o644); err != nil {
		return fmt.Errorf("write failure: %w", err)
	}
	return nil
}

func (s *Store) LoadFailure(roundID string) (Failure, error) {
	var failure Failure
	if strings.TrimSpace(roundID) == "" {
		return Failure{}, errors.New("roundID is required")
	}
	if err := readJSONStrict(s.failurePath(roundID), &failure); err != nil {
		return Failure{}, err
	}
	if err := failure.Validate(); err != nil {
		return Failure{}, fmt.Errorf("invalid failure on disk: %w", err)
	}
	return failure, nil
}

// ClearFailure removes a failure record left by an earlier attempt of a
// round that has since completed.
func (s *Store) ClearFailure(roundID string) error {
	if strings.TrimSpace(roundID) == "" {
		return errors.New("roundID is required")
	}
	err := os.Remove(s.failurePath(roundID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LoadCache returns the persisted legacy cache, or an empty cache when none
// was saved yet.
func (s *Store) LoadCache() (*manifest.Cache, error) {
	return LoadCacheFile(s.CachePath())
}

// SaveCache persists a snapshot of cache.
func (s *Store) SaveCache(cache *manifest.Cache) error {
	return SaveCacheFile(s.CachePath(), cache)
}

// LoadCacheFile reads a cache saved by SaveCacheFile. A missing file yields
// an empty cache.
func LoadCacheFile(path string) (*manifest.Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return manifest.NewCache(), nil
		}
		return nil, err
	}
	v, err := manifest.DecodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("invalid cache on disk: %w", err)
	}
	obj, ok := v.(*manifest.Object)
	if !ok {
		return nil, fmt.Errorf("invalid cache on disk: expected an object, got %T", v)
	}
	return manifest.NewCacheFrom(obj), nil
}

// SaveCacheFile writes a snapshot of cache to path atomically.
func SaveCacheFile(path string, cache *manifest.Cache) error {
	if cache == nil {
		return errors.New("cache is required")
	}
	if err := ensureDirDurable(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}
	data, err := jsonMarshalStable(cache.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := writeFileAtomicDurable(path, data, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

func jsonMarshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func readJSONStrict(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

func ensureDirDurable(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	if err := fsyncDir(dir); err != nil {
		return err
	}
	parent := filepath.Dir(dir)
	if parent != dir {
		if err := fsyncDir(parent); err != nil {
			return err
		}
	}
	return nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
