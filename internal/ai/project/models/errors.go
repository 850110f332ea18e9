package models

import (
	"fmt"
	"strings"

	core "github.com/Jamolkhon5/pmagent/internal/models"
)

// ValidationError - ответ модели не соответствует ожидаемой схеме.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid model output: " + e.Reason
	}
	return fmt.Sprintf("invalid model output: %s: %s", e.Field, e.Reason)
}

// NotFoundError - ссылка не совпала ни с одной задачей.
type NotFoundError struct {
	Reference string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no task matches %q", e.Reference)
}

// AmbiguousReferenceError - ссылка совпала с несколькими задачами.
type AmbiguousReferenceError struct {
	Reference  string
	Candidates []core.Task
}

func (e *AmbiguousReferenceError) Error() string {
	names := make([]string, 0, len(e.Candidates))
	for _, t := range e.Candidates {
		names = append(names, fmt.Sprintf("%q", t.Name))
	}
	return fmt.Sprintf("%q matches %d tasks: %s", e.Reference, len(e.Candidates), strings.Join(names, ", "))
}

// StoreError - сбой хранилища.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
