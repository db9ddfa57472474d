package tonemap

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/depthcast/depthcast/internal/logger"
)

// Store loads and caches the active tone-mapping parameters and detects
// external edits to the backing tuning file.
//
// The store does no background scheduling of its own: Poll is a pure "check
// now" operation, so the caller fully controls cadence and concurrency. A
// single goroutine drives Poll; any number of goroutines may call Snapshot.
type Store struct {
	path string

	mu           sync.RWMutex
	active       Params
	loadedAt     time.Time
	modTime      time.Time
	size         int64
	contentHash  [sha256.Size]byte
	rejectedHash [sha256.Size]byte
}

// NewStore creates a store backed by the tuning file at path. Call
// LoadOrDefault before the first Snapshot.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the tuning file path the store watches.
func (s *Store) Path() string {
	return s.path
}

// LoadOrDefault reads and validates the tuning file. A missing file,
// malformed content, or failed validation falls back to the built-in
// defaults with a warning; initial load never fails the caller.
func (s *Store) LoadOrDefault() Params {
	log := logger.WithComponent("tuning")

	p := DefaultParams()
	raw, err := os.ReadFile(s.path)
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).
			Msg("Tuning file unreadable, using built-in defaults")
	} else if parsed, perr := parseParams(raw); perr != nil {
		log.Warn().Err(perr).Str("path", s.path).
			Msg("Tuning file rejected, using built-in defaults")
	} else {
		p = parsed
	}

	s.mu.Lock()
	s.active = p
	s.loadedAt = time.Now()
	if fi, serr := os.Stat(s.path); serr == nil {
		s.modTime = fi.ModTime()
		s.size = fi.Size()
	}
	if raw != nil {
		s.contentHash = sha256.Sum256(raw)
	}
	s.mu.Unlock()

	log.Info().
		Float64("min", p.OutputMin).
		Float64("max", p.OutputMax).
		Float64("scale", p.SourceScale).
		Msg("Tone-mapping parameters loaded")
	return p
}

// Poll re-reads the tuning file if it appears to have changed since the last
// observation. The modification timestamp is the primary signal; a content
// hash catches edits on filesystems with coarse timestamp resolution.
//
// Returns the newly validated parameters and true if the file changed and
// parses cleanly. A transiently half-written or invalid file is treated as
// "no change": the previously active parameters stay in force and a warning
// is logged once per distinct rejected content.
func (s *Store) Poll() (Params, bool) {
	log := logger.WithComponent("tuning")

	fi, err := os.Stat(s.path)
	if err != nil {
		// Missing or unreadable file keeps the active parameters.
		log.Debug().Err(err).Str("path", s.path).Msg("Tuning file stat failed, keeping active parameters")
		return Params{}, false
	}

	s.mu.RLock()
	unchanged := fi.ModTime().Equal(s.modTime) && fi.Size() == s.size
	s.mu.RUnlock()
	if unchanged {
		return Params{}, false
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Tuning file read failed, keeping active parameters")
		return Params{}, false
	}
	hash := sha256.Sum256(raw)

	s.mu.Lock()
	if hash == s.contentHash {
		// Timestamp churn without a content change (e.g. touch).
		s.modTime = fi.ModTime()
		s.size = fi.Size()
		s.mu.Unlock()
		return Params{}, false
	}
	alreadyRejected := hash == s.rejectedHash
	s.mu.Unlock()

	p, err := parseParams(raw)
	if err != nil {
		if !alreadyRejected {
			log.Warn().Err(err).Str("path", s.path).
				Msg("Tuning file edit rejected, previous parameters remain active")
		}
		s.mu.Lock()
		s.rejectedHash = hash
		s.mu.Unlock()
		return Params{}, false
	}

	s.mu.Lock()
	old := s.active
	s.active = p
	s.loadedAt = time.Now()
	s.modTime = fi.ModTime()
	s.size = fi.Size()
	s.contentHash = hash
	s.mu.Unlock()

	log.Info().
		Float64("old_min", old.OutputMin).
		Float64("old_max", old.OutputMax).
		Float64("old_scale", old.SourceScale).
		Float64("min", p.OutputMin).
		Float64("max", p.OutputMax).
		Float64("scale", p.SourceScale).
		Msg("Tuning file reloaded")
	return p, true
}

// Snapshot returns the currently active parameters.
func (s *Store) Snapshot() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// LoadedAt returns when the active parameters were adopted.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Write validates p and rewrites the tuning file. The store does not adopt
// p directly; the edit flows through the same Poll path an external editor
// would use.
func (s *Store) Write(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tuning file: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write tuning file: %w", err)
	}
	return nil
}

// tuningFile is the wire form of the tuning file. Pointers distinguish a
// missing field from an explicit zero; unknown fields are ignored.
type tuningFile struct {
	OutputMin   *float64 `json:"infrared_output_value_minimum"`
	OutputMax   *float64 `json:"infrared_output_value_maximum"`
	SourceScale *float64 `json:"infrared_source_scale"`
}

func parseParams(raw []byte) (Params, error) {
	var f tuningFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return Params{}, fmt.Errorf("parse tuning file: %w", err)
	}
	if f.OutputMin == nil || f.OutputMax == nil || f.SourceScale == nil {
		return Params{}, fmt.Errorf("tuning file must set infrared_output_value_minimum, infrared_output_value_maximum and infrared_source_scale")
	}
	p := Params{
		OutputMin:   *f.OutputMin,
		OutputMax:   *f.OutputMax,
		SourceScale: *f.SourceScale,
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
