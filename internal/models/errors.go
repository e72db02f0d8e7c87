package models

import (
	"errors"
	"fmt"
)

// ValidationError represents a data or input validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// NotFoundError represents a missing resource: an input file, a stored
// table or a playback session
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// AlignmentError reports that the two site tables cannot be compared row by row
type AlignmentError struct {
	Row    int
	Reason string
}

func (e *AlignmentError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("site tables are not aligned: %s", e.Reason)
	}
	return fmt.Sprintf("site tables are not aligned at row %d: %s", e.Row, e.Reason)
}

func (e *AlignmentError) IsTransient() bool {
	return false
}

// Resource names used in NotFoundError
const (
	ResourceObservationFile  = "observation_file"
	ResourceObservationTable = "observation_table"
	ResourceSession          = "playback_session"
)

// IsNotFound reports whether err is a NotFoundError for the given resource.
// An empty resource matches any NotFoundError.
func IsNotFound(err error, resource string) bool {
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		return false
	}
	return resource == "" || nf.Resource == resource
}
