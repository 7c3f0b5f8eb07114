// Package mgmt implements the worker-facing management service. It is the
// registry's sole external mutator: workers call RegisterModel after binding
// their socket and UnregisterModel before a clean exit.
package mgmt

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"dispatchd/internal/registry"
	"dispatchd/protobufs"
)

// Service implements management.WorkerManagement.
type Service struct {
	protobufs.UnimplementedWorkerManagementServer

	reg *registry.Registry
	log zerolog.Logger
}

func NewService(reg *registry.Registry, log zerolog.Logger) *Service {
	return &Service{reg: reg, log: log}
}

func (s *Service) RegisterModel(ctx context.Context, req *protobufs.RegisterModelRequest) (*protobufs.RegisterModelResponse, error) {
	s.reg.Register(req.GetModelName(), req.GetModelVersion(), req.GetWorkerAddress(), req.GetWorkerId())
	return &protobufs.RegisterModelResponse{
		Success: true,
		Message: "model registered",
	}, nil
}

func (s *Service) UnregisterModel(ctx context.Context, req *protobufs.UnregisterModelRequest) (*protobufs.UnregisterModelResponse, error) {
	removed := s.reg.UnregisterModel(req.GetModelName(), req.GetModelVersion(), req.GetWorkerId())
	if !removed {
		return &protobufs.UnregisterModelResponse{
			Success: false,
			Message: "model not found",
		}, nil
	}
	return &protobufs.UnregisterModelResponse{
		Success: true,
		Message: "model unregistered",
	}, nil
}

// Heartbeat accepts the ping, counts it, and reports healthy. It records no
// timestamps and prunes nothing; worker liveness comes from the supervisor
// watching the child process.
func (s *Service) Heartbeat(ctx context.Context, req *protobufs.HeartbeatRequest) (*protobufs.HeartbeatResponse, error) {
	heartbeatsTotal.Inc()
	s.log.Debug().Str("worker_id", req.GetWorkerId()).Strs("models", req.GetModelNames()).Msg("heartbeat")
	return &protobufs.HeartbeatResponse{Healthy: true}, nil
}

// ListModels snapshots the registry's model routes, optionally restricted to
// one worker. Ordered by model key so output is stable for operators.
func (s *Service) ListModels(ctx context.Context, req *protobufs.ListModelsRequest) (*protobufs.ListModelsResponse, error) {
	entries := s.reg.Snapshot()
	models := make([]*protobufs.ModelRoute, 0, len(entries))
	for _, e := range entries {
		if req.GetWorkerId() != "" && e.WorkerID != req.GetWorkerId() {
			continue
		}
		models = append(models, &protobufs.ModelRoute{
			ModelName:     e.Name,
			ModelVersion:  e.Version,
			WorkerAddress: e.Endpoint,
			WorkerId:      e.WorkerID,
		})
	}
	sort.Slice(models, func(i, j int) bool {
		ki := registry.ModelKey(models[i].ModelName, models[i].ModelVersion)
		kj := registry.ModelKey(models[j].ModelName, models[j].ModelVersion)
		return ki < kj
	})
	return &protobufs.ListModelsResponse{Models: models}, nil
}
