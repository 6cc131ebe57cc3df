package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrFileNotFound        = errors.New("file not found in session")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUnknownBank         = errors.New("unknown bank")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrMissingMapping      = errors.New("column mapping required")
	ErrNotInConflict       = errors.New("transaction is not in conflict")
	ErrInvalidResolution   = errors.New("category is not one of the conflicting categories")
	ErrNotUnassigned       = errors.New("transaction is not unassigned")
	ErrNotResolved         = errors.New("transaction has no resolution to undo")
	ErrNotDuplicate        = errors.New("transaction is not flagged as duplicate")
	ErrSessionCommitted    = errors.New("session already committed")
)

// ReadError means the file could not be decoded at all. Fatal for that file.
type ReadError struct {
	FileName string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("unreadable file %s: %v", e.FileName, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ValidationError is a blocking structural mismatch against a chosen bank
// layout. Parsing must not proceed while any remain.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NoDataExtractedError means validation passed but zero rows survived
// parsing. A file that silently becomes empty is always a hard failure.
type NoDataExtractedError struct {
	FileName string
	BankID   string
}

func (e *NoDataExtractedError) Error() string {
	return fmt.Sprintf("no transactions extracted from %s using bank %s", e.FileName, e.BankID)
}

// PendingConflictsError is the commit precondition failure: conflicts remain
// unresolved. Recoverable by continuing resolution.
type PendingConflictsError struct {
	TransactionIDs []string
}

func (e *PendingConflictsError) Error() string {
	return fmt.Sprintf("%d transactions still in conflict: %s",
		len(e.TransactionIDs), strings.Join(e.TransactionIDs, ", "))
}
