package types

// RegisterRequest is the body of POST /register on the directory.
type RegisterRequest struct {
	// Unique identifier for the registering replica.
	// example: replica-001
	ReplicaID string `json:"replica_id"`
	// gRPC endpoint the replica serves inference on.
	// example: localhost:8001
	Endpoint string `json:"endpoint"`
	// Capability offers, matched by subset against route queries.
	Capabilities []Capability `json:"capabilities"`
}

// StreamEvent is one SSE event on the /register keep-alive stream.
type StreamEvent struct {
	// "registered" on the first event, then "alive" on every keep-alive tick.
	Status    string `json:"status"`
	ReplicaID string `json:"replica_id,omitempty"`
}

// RouteResponse answers GET /route with the chosen replica.
type RouteResponse struct {
	Endpoint  string `json:"endpoint"`
	ReplicaID string `json:"replica_id"`
}

// RegistryResponse wraps the replica list returned by GET /registry.
type RegistryResponse struct {
	Replicas []ReplicaInfo `json:"replicas"`
}

// ErrorResponse is the common JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}
