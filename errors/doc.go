// Package errors provides structured error types for the wasm-bridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: expected/observed tags and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseReceive, errors.KindTagMismatch).
//		Want("SocketResponse").
//		Got("OnSocketOpen").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Timeout(errors.PhaseTransfer, "size handshake")
//	err := errors.TagMismatch(errors.PhaseReceive, "SocketResponse", got)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
