package mapping

import (
	"github.com/google/uuid"

	"ulp/pkg/indexpattern"
)

// Task is a unit of work processing one source file and contributing to
// one Job's mapping, per spec §3. MappingRef is a non-owning shared handle
// to the parent Job's Store (spec §9: a shared-ownership pointer with
// interior mutability, not a back-pointer).
type Task struct {
	ID         string
	JobID      string
	Path       string
	MappingRef *Store
	Pattern    indexpattern.Pattern
}

// NewTask mints a fresh Task for path within job, per spec §4.6 step 3.
func NewTask(jobID, path string, mappingRef *Store, pattern indexpattern.Pattern) Task {
	return Task{
		ID:         uuid.NewString(),
		JobID:      jobID,
		Path:       path,
		MappingRef: mappingRef,
		Pattern:    pattern,
	}
}
