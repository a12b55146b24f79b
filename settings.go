package wasmbridge

import (
	"sync"
	"time"
)

// DefaultBlockingTimeout is the blocking round trip deadline used until
// SetBlockingTimeout overrides it.
const DefaultBlockingTimeout = 10 * time.Second

// settings are the mutable process-wide bridge settings. They are read at
// call time, so changes take effect for the next operation that consults
// them.
var settings = struct {
	mu              sync.RWMutex
	socketAddress   string
	debug           bool
	blockingTimeout time.Duration
}{
	blockingTimeout: DefaultBlockingTimeout,
}

// SetSocketAddress sets the websocket address of the compile peer.
func SetSocketAddress(addr string) {
	settings.mu.Lock()
	defer settings.mu.Unlock()
	settings.socketAddress = addr
}

// SocketAddress returns the configured compile peer address.
func SocketAddress() string {
	settings.mu.RLock()
	defer settings.mu.RUnlock()
	return settings.socketAddress
}

// SetDebug enables or disables debug logging in the worker session.
func SetDebug(enabled bool) {
	settings.mu.Lock()
	defer settings.mu.Unlock()
	settings.debug = enabled
}

// Debug returns the configured debug flag.
func Debug() bool {
	settings.mu.RLock()
	defer settings.mu.RUnlock()
	return settings.debug
}

// SetBlockingTimeout sets the deadline applied to each shared-memory poll
// of a blocking round trip.
func SetBlockingTimeout(d time.Duration) {
	settings.mu.Lock()
	defer settings.mu.Unlock()
	settings.blockingTimeout = d
}

// BlockingTimeout returns the configured blocking deadline.
func BlockingTimeout() time.Duration {
	settings.mu.RLock()
	defer settings.mu.RUnlock()
	return settings.blockingTimeout
}
