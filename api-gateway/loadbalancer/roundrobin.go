package loadbalancer

import (
	"sync"

	"github.com/tair/colporter/pkg/logger"
)

// RoundRobin hands out inventory replicas in turn
type RoundRobin struct {
	servers []string
	next    int
	mu      sync.Mutex
}

// NewRoundRobin creates a balancer over servers. An empty list yields a
// balancer whose Next always returns "".
func NewRoundRobin(servers []string) *RoundRobin {
	logger.Logger.Info().
		Int("server_count", len(servers)).
		Strs("servers", servers).
		Msg("Round-robin load balancer initialized")

	return &RoundRobin{servers: append([]string(nil), servers...)}
}

// Next returns the next server
func (rr *RoundRobin) Next() string {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if len(rr.servers) == 0 {
		return ""
	}
	server := rr.servers[rr.next]
	rr.next = (rr.next + 1) % len(rr.servers)
	return server
}

// Servers returns a copy of the configured servers
func (rr *RoundRobin) Servers() []string {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return append([]string(nil), rr.servers...)
}
