package store

import (
	"errors"
	"fmt"
)

// Module identifies the storage-layer origin of an error.
type Module int

const (
	ModuleStore Module = 3
	ModuleCache Module = 4
)

// Code identifies the operation class that failed. Low-level backend errors
// never cross the Store contract unwrapped; they are rewrapped under one of
// these codes.
type Code int

const (
	CodeUnknown Code = iota
	CodeSavingDoc
	CodeLoadingDoc
	CodeDeletingDoc
	CodeSavingObject
	CodeLoadingObject
	CodeDeletingObject
	CodeSavingClass
	CodeLoadingClass
	CodeSavingLock
	CodeLoadingLock
	CodeDeletingLock
	CodeSavingLinks
	CodeLoadingLinks
	CodeDeletingLinks
	CodeSavingAttachment
	CodeLoadingAttachment
	CodeDeletingAttachment
	CodeSavingArchive
	CodeLoadingArchive
	CodeSearch
	CodeMapping
	CodeMigrate
	CodeCache
	CodeUnsupported
)

// Error is the single error kind of the storage core. It carries a module
// code, an operation code, the offending identity and the low-level cause.
type Error struct {
	Module Module
	Code   Code
	Ref    string // offending document/object identity, when known
	Msg    string
	Cause  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("store error %d-%d: %s", e.Module, e.Code, e.Msg)
	if e.Ref != "" {
		msg += " [" + e.Ref + "]"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// wrap builds a storage error around a low-level cause.
func wrap(code Code, ref, msg string, cause error) error {
	return &Error{Module: ModuleStore, Code: code, Ref: ref, Msg: msg, Cause: cause}
}

// unsupported reports an operation a backend does not implement.
func unsupported(backend, op string) error {
	return &Error{Module: ModuleStore, Code: CodeUnsupported, Msg: fmt.Sprintf("%s does not support %s", backend, op)}
}

// ErrorCode extracts the operation code from an error chain, or CodeUnknown.
func ErrorCode(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnknown
}
