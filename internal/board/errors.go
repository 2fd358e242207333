package board

import (
	"errors"
	"fmt"

	"demandboard/internal/domain"
)

var (
	// ErrSuperseded means a load finished after a newer load was issued or a
	// local mutation happened; its result was discarded.
	ErrSuperseded    = errors.New("load superseded")
	ErrNotSelecting  = errors.New("board is not in delete-selection mode")
	ErrDragDisabled  = errors.New("drag is disabled while selecting for deletion")
	ErrUnknownDemand = errors.New("unknown demand")
	ErrEmptySequence = errors.New("nothing to present")
	ErrFormClosed    = errors.New("form is not open")
)

// ValidationError is raised before any network call; nothing changed.
type ValidationError struct {
	Problems []domain.Problem
}

func (e *ValidationError) Error() string {
	return "validation failed: " + domain.JoinProblems(e.Problems)
}

// FetchError means the record set could not be read; the collection is stale.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetch demands: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// PersistenceError means a write was rejected or never reached the store.
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
