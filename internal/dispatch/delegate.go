package dispatch

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"dispatchd/internal/directory"
	"dispatchd/pkg/types"
	"dispatchd/protobufs"
)

// directoryDelegator re-issues a request through the directory to whichever
// peer dispatcher advertises the capability, excluding ourselves. The hop
// header it stamps prevents the peer from delegating again.
type directoryDelegator struct {
	dir       *directory.Client
	replicaID string
	log       zerolog.Logger
}

func NewDirectoryDelegator(dir *directory.Client, replicaID string, log zerolog.Logger) Delegator {
	return &directoryDelegator{dir: dir, replicaID: replicaID, log: log}
}

func (d *directoryDelegator) Delegate(ctx context.Context, req *protobufs.ModelInferRequest) (*protobufs.ModelInferResponse, error) {
	query := types.ModelCapability(req.GetModelName(), req.GetModelVersion())
	route, err := d.dir.Route(ctx, query, d.replicaID)
	if err != nil {
		if directory.IsNoRoute(err) {
			return nil, noRouteError{query: query.String()}
		}
		return nil, err
	}

	d.log.Info().Str("model", req.GetModelName()).Str("peer", route.ReplicaID).
		Str("endpoint", route.Endpoint).Msg("delegating request")

	conn, err := grpc.NewClient(route.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ctx = metadata.AppendToOutgoingContext(ctx, HopHeader, "1")
	return protobufs.NewGRPCInferenceServiceClient(conn).ModelInfer(ctx, req)
}
