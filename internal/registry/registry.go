// Package registry holds the in-memory mapping from model capabilities to
// worker endpoints. One mutex guards the forward index, the reverse index,
// and the worker endpoint records; no operation blocks on I/O.
package registry

import (
	"sync"

	"github.com/rs/zerolog"
)

// Entry is one registered model capability.
type Entry struct {
	Name     string
	Version  string
	Endpoint string
	WorkerID string
}

// ModelKey derives the registry's unit of addressing: the bare name when
// version is empty, otherwise "name:version".
func ModelKey(name, version string) string {
	if version == "" {
		return name
	}
	return name + ":" + version
}

// Registry is the dispatcher-local capability index. All operations are
// atomic with respect to each other.
type Registry struct {
	mu sync.Mutex
	// forward: model key -> entry (exactly one endpoint per key).
	models map[string]Entry
	// reverse: worker id -> set of model keys it owns.
	workerModels map[string]map[string]struct{}
	// worker id -> last registered endpoint.
	workerEndpoints map[string]string

	onChange func()
	log      zerolog.Logger
}

func New(log zerolog.Logger) *Registry {
	return &Registry{
		models:          make(map[string]Entry),
		workerModels:    make(map[string]map[string]struct{}),
		workerEndpoints: make(map[string]string),
		log:             log,
	}
}

// SetChangeHook installs a callback invoked after every mutation that changed
// state, outside the registry lock. Used to re-announce capability offers.
func (r *Registry) SetChangeHook(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Registry) notify() {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Register upserts the forward entry for (name, version) and keeps the
// reverse index consistent: if the key previously belonged to a different
// worker, that worker loses it. Last writer wins.
func (r *Registry) Register(name, version, endpoint, workerID string) {
	key := ModelKey(name, version)
	r.mu.Lock()
	if prev, ok := r.models[key]; ok && prev.WorkerID != workerID {
		r.dropFromWorkerLocked(prev.WorkerID, key)
	}
	r.models[key] = Entry{Name: name, Version: version, Endpoint: endpoint, WorkerID: workerID}
	set := r.workerModels[workerID]
	if set == nil {
		set = make(map[string]struct{})
		r.workerModels[workerID] = set
	}
	set[key] = struct{}{}
	r.workerEndpoints[workerID] = endpoint
	r.mu.Unlock()

	r.log.Info().Str("model", key).Str("endpoint", endpoint).Str("worker_id", workerID).Msg("model registered")
	r.notify()
}

// Lookup resolves (name, version) to a worker endpoint. Exact key first; if a
// version was given and missed, fall back to the versionless key. That
// two-step is the whole versioning rule.
func (r *Registry) Lookup(name, version string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.models[ModelKey(name, version)]; ok {
		return e.Endpoint, true
	}
	if version != "" {
		if e, ok := r.models[ModelKey(name, "")]; ok {
			return e.Endpoint, true
		}
	}
	return "", false
}

// UnregisterModel removes one forward entry and its reverse record. Reports
// whether an entry was actually removed.
func (r *Registry) UnregisterModel(name, version, workerID string) bool {
	key := ModelKey(name, version)
	r.mu.Lock()
	_, ok := r.models[key]
	if ok {
		delete(r.models, key)
		r.dropFromWorkerLocked(workerID, key)
	}
	r.mu.Unlock()
	if ok {
		r.log.Info().Str("model", key).Str("worker_id", workerID).Msg("model unregistered")
		r.notify()
	}
	return ok
}

// UnregisterWorker evicts every model the worker owns plus its reverse and
// endpoint records. Returns the number of forward entries dropped.
func (r *Registry) UnregisterWorker(workerID string) int {
	r.mu.Lock()
	count := r.unregisterWorkerLocked(workerID)
	r.mu.Unlock()
	if count > 0 {
		r.log.Info().Str("worker_id", workerID).Int("models", count).Msg("worker unregistered")
		r.notify()
	}
	return count
}

// UnregisterEndpoint evicts every worker registered against endpoint. This is
// the supervisor's cleanup path: it knows the dead worker's socket but not
// the worker-chosen id.
func (r *Registry) UnregisterEndpoint(endpoint string) int {
	r.mu.Lock()
	var ids []string
	for id, ep := range r.workerEndpoints {
		if ep == endpoint {
			ids = append(ids, id)
		}
	}
	count := 0
	for _, id := range ids {
		count += r.unregisterWorkerLocked(id)
	}
	r.mu.Unlock()
	if count > 0 {
		r.log.Info().Str("endpoint", endpoint).Int("models", count).Msg("endpoint evicted")
		r.notify()
	}
	return count
}

// ListModels enumerates registered model keys.
func (r *Registry) ListModels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.models))
	for key := range r.models {
		out = append(out, key)
	}
	return out
}

// ListModelsByWorker enumerates the model keys owned by one worker.
func (r *Registry) ListModelsByWorker(workerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.workerModels[workerID]
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	return out
}

// Snapshot returns a copy of every forward entry.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.models))
	for _, e := range r.models {
		out = append(out, e)
	}
	return out
}

// dropFromWorkerLocked removes key from workerID's reverse set, dropping the
// worker's records entirely once its set is empty. Caller holds r.mu.
func (r *Registry) dropFromWorkerLocked(workerID, key string) {
	set := r.workerModels[workerID]
	if set == nil {
		return
	}
	delete(set, key)
	if len(set) == 0 {
		delete(r.workerModels, workerID)
		delete(r.workerEndpoints, workerID)
	}
}

// unregisterWorkerLocked removes all of workerID's forward entries. Caller
// holds r.mu.
func (r *Registry) unregisterWorkerLocked(workerID string) int {
	set := r.workerModels[workerID]
	count := 0
	for key := range set {
		if e, ok := r.models[key]; ok && e.WorkerID == workerID {
			delete(r.models, key)
			count++
		}
	}
	delete(r.workerModels, workerID)
	delete(r.workerEndpoints, workerID)
	return count
}
