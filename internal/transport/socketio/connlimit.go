package socketio

import (
	"net"
	"strings"
	"sync"
)

// ConnectionLimiter caps concurrent dashboard connections from remote hosts.
// Loopback clients are never limited. When a new remote client exceeds the
// cap, the oldest remote client is evicted. A cap of zero or less disables
// the limit.
type ConnectionLimiter struct {
	mu        sync.Mutex
	maxRemote int
	// remote client IDs, oldest first
	remote []string
	// clientID -> normalized remote IP
	connections map[string]string
}

// NewConnectionLimiter creates a limiter that allows up to maxRemote
// concurrent non-loopback connections.
func NewConnectionLimiter(maxRemote int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxRemote:   maxRemote,
		connections: make(map[string]string),
	}
}

// TryAdd registers a connection and returns the ID of any client evicted to
// make room for it.
func (cl *ConnectionLimiter) TryAdd(clientID, remoteAddr string) (evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.connections[clientID]; exists {
		return ""
	}

	ip := normalizeIP(remoteAddr)
	cl.connections[clientID] = ip

	if isLoopback(ip) {
		return ""
	}

	cl.remote = append(cl.remote, clientID)
	if cl.maxRemote > 0 && len(cl.remote) > cl.maxRemote {
		evictedID = cl.remote[0]
		cl.remote = cl.remote[1:]
		delete(cl.connections, evictedID)
	}
	return evictedID
}

// Remove unregisters a connection when a client disconnects.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	ip, exists := cl.connections[clientID]
	if !exists {
		return
	}
	delete(cl.connections, clientID)

	if isLoopback(ip) {
		return
	}
	for i, id := range cl.remote {
		if id == clientID {
			cl.remote = append(cl.remote[:i], cl.remote[i+1:]...)
			break
		}
	}
}

// Len returns the number of tracked connections.
func (cl *ConnectionLimiter) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.connections)
}

// normalizeIP strips a port and IPv6 brackets from a remote address.
func normalizeIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return strings.Trim(addr, "[]")
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
