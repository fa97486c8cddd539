// Package mapping implements the per-job aggregate (C3) that accumulates a
// global and per-index structural type from every record observed, plus
// the Job/Task/Message shapes the orchestrator and worker pool exchange
// (spec §3-§4.3).
package mapping

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"ulp/pkg/errors"
	"ulp/pkg/indexpattern"
	"ulp/pkg/typelattice"
	"ulp/pkg/value"
)

// ParsedFileStats is one completed parse task's record, per spec §3.
type ParsedFileStats struct {
	TaskID     string `json:"task_id"`
	JobID      string `json:"job_id"`
	SourcePath string `json:"source_path"`
	ParsedPath string `json:"parsed_path"`
	SizeBytes  int64  `json:"size_bytes"`
	SHA256Hex  string `json:"sha256_hex"`
	ParserKind string `json:"parser_kind"`
}

// TypeChange is one append to the change_log: a single field path whose
// stored type widened, and the value that triggered the widening.
type TypeChange struct {
	Path            string             `json:"path"`
	OldType         typelattice.Type   `json:"old_type"`
	NewType         typelattice.Type   `json:"new_type"`
	TriggeringValue value.Value        `json:"triggering_value"`
}

// ErrUnknownIndex is returned by Cast when asked to cast against an index
// name that has never been observed.
var ErrUnknownIndex = fmt.Errorf("mapping: unknown index")

// Store is the mutex-protected aggregate described in spec §3/§4.3: a
// global type, one type per distinct index name, the file stats for every
// completed task, and the widening change log. All mutating operations
// hold the lock for their full duration; snapshot getters clone the
// requested subtree under the lock so callers never see a torn read.
type Store struct {
	mu         sync.Mutex
	globalType typelattice.Type
	perIndex   map[string]typelattice.Type
	files      []ParsedFileStats
	changeLog  []TypeChange
}

func New() *Store {
	return &Store{
		globalType: typelattice.Null(),
		perIndex:   make(map[string]typelattice.Type),
	}
}

// Observe infers a type for v, merges it into the global type and the type
// of the index v.pattern resolves to, and appends any resulting leaf
// widenings to the change log (spec §4.3).
func (s *Store) Observe(v value.Value, pattern indexpattern.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, changes, err := typelattice.MergeObserve(s.globalType, v, "")
	if err != nil {
		return errors.New(errors.KindTypeInference, "mapping.Store", "Observe", err)
	}
	s.globalType = merged
	s.changeLog = append(s.changeLog, fromLatticeChanges(changes)...)

	index := pattern.Render(v)
	existing, ok := s.perIndex[index]
	if !ok {
		existing = typelattice.Null()
	}
	mergedIdx, idxChanges, err := typelattice.MergeObserve(existing, v, "")
	if err != nil {
		return errors.New(errors.KindTypeInference, "mapping.Store", "Observe", err)
	}
	s.perIndex[index] = mergedIdx
	s.changeLog = append(s.changeLog, fromLatticeChanges(idxChanges)...)
	return nil
}

func fromLatticeChanges(changes []typelattice.Change) []TypeChange {
	out := make([]TypeChange, len(changes))
	for i, c := range changes {
		out[i] = TypeChange{Path: c.Path, OldType: c.OldType, NewType: c.NewType, TriggeringValue: c.TriggeringValue}
	}
	return out
}

// RegisterFile hashes and sizes the file at sourcePath and appends its
// ParsedFileStats entry, per spec §4.3. parsedPath is the canonical NDJSON
// output path the worker already wrote to.
func (s *Store) RegisterFile(uploadDir, jobID, taskID, sourcePath, parserKind string) error {
	f, err := os.Open(sourcePath)
	if err != nil {
		return errors.New(errors.KindStats, "mapping.Store", "RegisterFile", err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return errors.New(errors.KindStats, "mapping.Store", "RegisterFile", err)
	}

	parsedPath, err := filepath.Abs(filepath.Join(uploadDir, jobID, taskID+".data"))
	if err != nil {
		return errors.New(errors.KindStats, "mapping.Store", "RegisterFile", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, ParsedFileStats{
		TaskID:     taskID,
		JobID:      jobID,
		SourcePath: sourcePath,
		ParsedPath: parsedPath,
		SizeBytes:  size,
		SHA256Hex:  hex.EncodeToString(h.Sum(nil)),
		ParserKind: parserKind,
	})
	return nil
}

// Cast casts v against the named index's type, or the global type when
// indexName is nil, per spec §4.3.
func (s *Store) Cast(v value.Value, indexName *string) (value.Value, error) {
	s.mu.Lock()
	var ty typelattice.Type
	if indexName != nil {
		t, ok := s.perIndex[*indexName]
		if !ok {
			s.mu.Unlock()
			return value.Value{}, ErrUnknownIndex
		}
		ty = t
	} else {
		ty = s.globalType
	}
	s.mu.Unlock()

	out, err := typelattice.Cast(ty, v, "")
	if err != nil {
		return value.Value{}, errors.New(errors.KindTypeCast, "mapping.Store", "Cast", err)
	}
	return out, nil
}

// GlobalType returns a snapshot of the global type.
func (s *Store) GlobalType() typelattice.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalType
}

// PerIndex returns a snapshot copy of the per-index type map.
func (s *Store) PerIndex() map[string]typelattice.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]typelattice.Type, len(s.perIndex))
	for k, v := range s.perIndex {
		out[k] = v
	}
	return out
}

// Files returns a snapshot copy of the parsed-file stats.
func (s *Store) Files() []ParsedFileStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ParsedFileStats, len(s.files))
	copy(out, s.files)
	return out
}

// ChangeLog returns a snapshot copy of the change log.
func (s *Store) ChangeLog() []TypeChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TypeChange, len(s.changeLog))
	copy(out, s.changeLog)
	return out
}

// marshalSnapshot is the shape persisted at <upload_dir>/<job_id>/mappings.json
// under the "mapping" key, per spec §6.
type marshalSnapshot struct {
	Map                 typelattice.Type            `json:"map"`
	IndexPatternMappings map[string]typelattice.Type `json:"index_pattern_mappings"`
	FileMapping         []ParsedFileStats           `json:"file_mapping"`
}

func (s *Store) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := marshalSnapshot{
		Map:                 s.globalType,
		IndexPatternMappings: s.perIndex,
		FileMapping:         s.files,
	}
	return json.Marshal(snap)
}

func (s *Store) UnmarshalJSON(data []byte) error {
	var snap marshalSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalType = snap.Map
	s.perIndex = snap.IndexPatternMappings
	if s.perIndex == nil {
		s.perIndex = make(map[string]typelattice.Type)
	}
	s.files = snap.FileMapping
	return nil
}
