// Package checkpoint persists in-progress classification results so an
// interrupted run can resume. The artifact is a gzip-compressed msgpack
// snapshot written atomically; durability is best effort and a failed
// write never aborts the run.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fpang/livechat-analyzer/internal/comment"
)

// filePattern matches checkpoint artifacts in a discovery directory.
const filePattern = "analysis_save_*.ckpt"

// Record is one completed classification, positionally aligned with the
// input sequence.
type Record struct {
	Index     int    `msgpack:"index"`
	Attribute string `msgpack:"attribute"`
	Sentiment string `msgpack:"sentiment"`
}

// Snapshot is the durable state of one run.
type Snapshot struct {
	RunID       string    `msgpack:"run_id"`
	SavedAt     time.Time `msgpack:"saved_at"`
	Fingerprint uint64    `msgpack:"fingerprint"`
	Total       int       `msgpack:"total"`
	Records     []Record  `msgpack:"records"`
}

// Store reads and writes one checkpoint artifact. Save calls from
// concurrent completions are serialized internally.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore wraps an existing or to-be-created checkpoint file.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// NewStoreInDir creates a store with a fresh timestamped file name inside
// dir, following the discovery naming convention.
func NewStoreInDir(dir string) *Store {
	name := fmt.Sprintf("analysis_save_%s_%s.ckpt",
		time.Now().Format("20060102_150405"), uuid.NewString()[:8])
	return &Store{path: filepath.Join(dir, name)}
}

// Path returns the artifact location.
func (s *Store) Path() string { return s.path }

// Save overwrites the checkpoint with the given snapshot. The write goes
// to a temp file in the same directory and is renamed into place, so a
// crash mid-write never leaves a truncated artifact. Failures are logged
// and swallowed.
func (s *Store) Save(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(snap); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Checkpoint save failed, continuing without durable progress")
		return
	}
	log.Debug().
		Str("path", s.path).
		Int("records", len(snap.Records)).
		Int("total", snap.Total).
		Msg("Checkpoint saved")
}

func (s *Store) write(snap Snapshot) error {
	payload, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ckpt-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if _, err := zw.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush compressed snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Load returns the most recently saved snapshot. The second return is
// false when no artifact exists or it cannot be decoded; a corrupt
// checkpoint is treated the same as a missing one.
func (s *Store) Load() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("Checkpoint open failed")
		}
		return Snapshot{}, false
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Checkpoint is not a valid gzip artifact")
		return Snapshot{}, false
	}
	defer zr.Close()

	var snap Snapshot
	if err := msgpack.NewDecoder(zr).Decode(&snap); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Checkpoint decode failed")
		return Snapshot{}, false
	}
	return snap, true
}

// Clear removes the artifact. Missing files are fine; other failures are
// logged and ignored.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", s.path).Msg("Checkpoint removal failed")
		return
	}
	log.Debug().Str("path", s.path).Msg("Checkpoint cleared")
}

// FindLatest returns the most recently modified checkpoint artifact in
// dir, enabling resume across process restarts without retained state.
func FindLatest(dir string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(dir, filePattern))
	if err != nil || len(matches) == 0 {
		return "", false
	}

	var latest string
	var latestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = m
			latestMod = info.ModTime()
		}
	}
	return latest, latest != ""
}

// Fingerprint hashes the identity of the input sequence (order, text and
// author of every row). A snapshot only resumes against the exact input
// it was taken from; a reordered or filtered input produces a different
// fingerprint and the resume is rejected.
func Fingerprint(items []comment.Comment) uint64 {
	h := xxhash.New()
	for _, c := range items {
		h.WriteString(c.GuestID)
		h.WriteString("\x1f")
		h.WriteString(c.Username)
		h.WriteString("\x1f")
		h.WriteString(c.Text)
		h.WriteString("\x1e")
	}
	return h.Sum64()
}
