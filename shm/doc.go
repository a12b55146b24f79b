// Package shm implements the two-phase shared-memory transfer protocol that
// carries a serialized response from the worker context to a caller that is
// spin-waiting in the host context.
//
// The payload's serialized size is unknown up front and a shared buffer
// cannot be resized after allocation, so the transfer happens in two phases:
//
//   - Prologue: the host allocates a SizeBuffer and polls its flag. The worker
//     stores the payload's UTF-16 code-unit count and publishes the flag.
//   - Epilogue: the host allocates a PayloadBuffer of exactly that many code
//     units and polls again. The worker writes the code units and publishes.
//
// Both buffers use a three-state flag (empty, ready, abandoned). The waiting
// side CASes empty to abandoned before giving up on a timeout or
// cancellation, so a late writer observes the abandonment and discards its
// write instead of racing the reader. Publishing the flag with an atomic CAS
// establishes the happens-before edge that makes the preceding payload writes
// visible to the reader.
//
// Buffers are allocated fresh per blocking round trip and discarded after the
// flag is consumed. There is no reuse or pooling.
package shm
