// Package directory implements the cluster-wide capability directory: the
// HTTP service dispatchers announce themselves to, the in-memory registry
// behind it, and the client dispatchers use to stay registered and to route
// around themselves.
package directory

import (
	"math/rand"
	"sync"

	"dispatchd/pkg/types"
)

// CapabilityRegistry maps replica ids to their endpoints and capability
// offers. Entry lifetime is owned by the caller (the register stream handler
// removes entries when the stream drops).
type CapabilityRegistry struct {
	mu       sync.Mutex
	replicas map[string]types.ReplicaInfo
}

func NewCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{replicas: make(map[string]types.ReplicaInfo)}
}

// Register upserts the replica. A re-register replaces the prior entry.
func (r *CapabilityRegistry) Register(info types.ReplicaInfo) {
	caps := make([]types.Capability, len(info.Capabilities))
	for i, c := range info.Capabilities {
		caps[i] = c.Clone()
	}
	info.Capabilities = caps
	r.mu.Lock()
	r.replicas[info.ReplicaID] = info
	r.mu.Unlock()
}

// Unregister removes the replica. Reports whether it was present.
func (r *CapabilityRegistry) Unregister(replicaID string) bool {
	r.mu.Lock()
	_, ok := r.replicas[replicaID]
	delete(r.replicas, replicaID)
	r.mu.Unlock()
	return ok
}

// Lookup returns one replica whose offers contain a superset of query,
// chosen uniformly at random among all matches for simple load spreading.
// exclude removes one replica id from consideration (used by delegation).
func (r *CapabilityRegistry) Lookup(query types.Capability, exclude string) (types.ReplicaInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matches []types.ReplicaInfo
	for id, info := range r.replicas {
		if exclude != "" && id == exclude {
			continue
		}
		for _, offer := range info.Capabilities {
			if offer.Matches(query) {
				matches = append(matches, info)
				break
			}
		}
	}
	if len(matches) == 0 {
		return types.ReplicaInfo{}, false
	}
	return matches[rand.Intn(len(matches))], true
}

// List snapshots every registered replica.
func (r *CapabilityRegistry) List() []types.ReplicaInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.ReplicaInfo, 0, len(r.replicas))
	for _, info := range r.replicas {
		out = append(out, info)
	}
	return out
}
