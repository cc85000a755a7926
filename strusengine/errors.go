// Package strusengine is the public entry point of the full-text search
// engine core: a storage client, a document builder, and a stack-based
// query evaluator, all thin wrappers over the internal/* packages that
// implement the wire formats and algorithms. The split mirrors how the
// teacher's libravdb package wraps internal/storage/internal/index rather
// than exposing them directly.
package strusengine

import (
	"github.com/strusgo/strusengine/internal/errbuf"
	"github.com/strusgo/strusengine/internal/storageimpl"
)

// Error is the structured error returned by every operation in this
// package: a Kind plus a message and optional cause, re-exported from
// internal/storageimpl so callers never import an internal package to
// type-switch on error kind.
type Error = storageimpl.Error

// ErrorKind classifies an Error (spec.md §7's fixed error-kind enum).
type ErrorKind = errbuf.Kind

// Error kind constants, re-exported for callers that want to switch on
// err.(*Error).Kind without importing internal/errbuf.
const (
	ErrKindNone              = errbuf.KindNone
	ErrKindOutOfMem          = errbuf.KindOutOfMem
	ErrKindSyntax            = errbuf.KindSyntax
	ErrKindInvalidArgument   = errbuf.KindInvalidArgument
	ErrKindRuntimeError      = errbuf.KindRuntimeError
	ErrKindNotImplemented    = errbuf.KindNotImplemented
	ErrKindUnknownIdentifier = errbuf.KindUnknownIdentifier
	ErrKindDataCorruption    = errbuf.KindDataCorruption
	ErrKindIoError           = errbuf.KindIoError
)
