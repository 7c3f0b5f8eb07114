package types

import (
	"sort"
	"strings"
)

// Capability is an unordered set of key/value attributes describing what a
// replica can serve, e.g. {"type": "chat"} or {"model": "classifier", "version": "v1"}.
type Capability map[string]string

// Matches reports whether every key of query is present in c with the same
// value. An empty query matches any capability.
func (c Capability) Matches(query Capability) bool {
	for k, v := range query {
		got, ok := c[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of c.
func (c Capability) Clone() Capability {
	if c == nil {
		return nil
	}
	out := make(Capability, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// String renders the capability as "k1=v1,k2=v2" with sorted keys, for logs.
func (c Capability) String() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(c[k])
	}
	return b.String()
}

// ModelCapability builds the two-key capability form used for registered
// models. Version is omitted when empty.
func ModelCapability(name, version string) Capability {
	c := Capability{"model": name}
	if version != "" {
		c["version"] = version
	}
	return c
}

// ReplicaInfo describes one registered dispatcher replica.
type ReplicaInfo struct {
	// Unique identifier chosen by the replica.
	ReplicaID string `json:"replica_id"`
	// gRPC endpoint clients should dial, e.g. "localhost:8001".
	Endpoint string `json:"endpoint"`
	// Capability offers the replica currently serves.
	Capabilities []Capability `json:"capabilities"`
}
