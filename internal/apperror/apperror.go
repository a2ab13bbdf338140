// Package apperror gives client-visible RPC failures (NotLeader,
// OverwrittenProposal, and unexpected internal errors) a uniform shape,
// adapted from the AppError pattern of pkg/errors in the bunbase monorepo.
// Unlike pkg/errors, codes here are raftkv's own small error-kind enum
// rather than net/http status codes, since this engine's client surface is
// not HTTP.
package apperror

import "fmt"

// Kind classifies a client-visible error, per the error kinds the
// consensus core distinguishes.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotLeader
	KindOverwrittenProposal
	KindTimeout
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNotLeader:
		return "not_leader"
	case KindOverwrittenProposal:
		return "overwritten_proposal"
	case KindTimeout:
		return "timeout"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// AppError is a client-visible error carrying a Kind and, for KindNotLeader,
// a LeaderHint the caller should retry against.
type AppError struct {
	Kind       Kind
	Message    string
	LeaderHint string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NotLeader builds a KindNotLeader AppError carrying hint.
func NotLeader(hint string) *AppError {
	return &AppError{Kind: KindNotLeader, Message: "not leader", LeaderHint: hint}
}

// OverwrittenProposal builds a KindOverwrittenProposal AppError.
func OverwrittenProposal() *AppError {
	return &AppError{Kind: KindOverwrittenProposal, Message: "proposal lost, retry"}
}

// Storage wraps a fatal storage error.
func Storage(err error) *AppError {
	return &AppError{Kind: KindStorage, Message: "storage failure", Err: err}
}

// Timeout wraps a client call that exceeded its deadline.
func Timeout(err error) *AppError {
	return &AppError{Kind: KindTimeout, Message: "timed out", Err: err}
}
