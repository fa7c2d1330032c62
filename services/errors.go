package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kendall-kelly/servicehub-api/models"
	"gorm.io/gorm"
)

// ValidationError reports malformed or missing input, keyed by field name
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// add records a field problem, keeping the first message per field
func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// orNil returns e only when at least one field failed
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NotFoundError reports a referenced id that does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InvalidStateError reports an operation attempted from a state that
// disallows it. Callers must re-fetch before retrying.
type InvalidStateError struct {
	Resource  string
	ID        string
	Operation string
	Current   string
	Expired   bool
}

func (e *InvalidStateError) Error() string {
	if e.Expired {
		return fmt.Sprintf("cannot %s %s %s: it has expired", e.Operation, e.Resource, e.ID)
	}
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Operation, e.Resource, e.ID, e.Current)
}

// DuplicateResponseError reports a second offer from the same business
type DuplicateResponseError struct {
	RequestID  string
	BusinessID uint
}

func (e *DuplicateResponseError) Error() string {
	return fmt.Sprintf("business %d already responded to service request %s", e.BusinessID, e.RequestID)
}

// InsufficientRightsError reports a raffle spend the ledger cannot cover
type InsufficientRightsError struct {
	Requested int
	Available int
}

func (e *InsufficientRightsError) Error() string {
	if e.Requested <= 0 {
		return fmt.Sprintf("rights to use must be positive, got %d", e.Requested)
	}
	return fmt.Sprintf("requested %d rights but only %d available", e.Requested, e.Available)
}

// requestStateError reports Expired both for a swept request and for one
// whose window passed before the sweep reached it
func requestStateError(op string, req *models.ServiceRequest, expired bool) *InvalidStateError {
	return &InvalidStateError{
		Resource:  "service request",
		ID:        req.ID,
		Operation: op,
		Current:   string(req.Status),
		Expired:   expired || req.Status == models.RequestExpired,
	}
}

func responseStateError(op string, resp *models.ServiceRequestResponse) *InvalidStateError {
	return &InvalidStateError{
		Resource:  "response",
		ID:        resp.ID,
		Operation: op,
		Current:   string(resp.Status),
	}
}

// IsUniqueViolation works with both translated gorm errors and raw driver
// messages from PostgreSQL, MySQL and SQLite
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry")
}

// NotEligibleError reports a business answering a request outside its
// province or category
type NotEligibleError struct {
	RequestID  string
	BusinessID uint
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("business %d is not eligible to respond to service request %s", e.BusinessID, e.RequestID)
}
