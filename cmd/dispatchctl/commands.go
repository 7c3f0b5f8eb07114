package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"dispatchd/internal/directory"
	"dispatchd/pkg/types"
	"dispatchd/protobufs"
)

const rpcTimeout = 10 * time.Second

// buildRootCmd constructs the Cobra command tree for operator tasks against a
// running directory and dispatcher fleet.
func buildRootCmd() *cobra.Command {
	var directoryURL string
	var managementAddr string
	var inferAddr string

	root := &cobra.Command{
		Use:           "dispatchctl",
		Short:         "Operator utilities for dispatchd and directoryd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&directoryURL, "directory", envOr("DISPATCHD_DIRECTORY_URL", "http://localhost:8080"), "Directory base URL")
	root.PersistentFlags().StringVar(&managementAddr, "management", envOr("DISPATCHD_MANAGEMENT_ADDR", "127.0.0.1:8002"), "Dispatcher management address")
	root.PersistentFlags().StringVar(&inferAddr, "addr", envOr("DISPATCHD_ADDR", "localhost:8001"), "Dispatcher inference address")

	routeCmd := &cobra.Command{
		Use:     "route k=v [k=v...]",
		Short:   "Resolve a capability query through the directory",
		Example: "  dispatchctl route type=embed",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseCapability(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()
			route, err := newDirectoryClient(directoryURL).Route(ctx, query, "")
			if err != nil {
				return err
			}
			return printJSON(route)
		},
	}

	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "List replicas registered with the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()
			replicas, err := newDirectoryClient(directoryURL).Registry(ctx)
			if err != nil {
				return err
			}
			return printJSON(types.RegistryResponse{Replicas: replicas})
		},
	}

	modelsCmd := &cobra.Command{
		Use:     "models",
		Short:   "List model routes registered on a dispatcher",
		Example: "  dispatchctl models\n  dispatchctl models --worker-id w0",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workerID, _ := cmd.Flags().GetString("worker-id")
			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()
			conn, err := dialGRPC(managementAddr)
			if err != nil {
				return err
			}
			defer conn.Close()
			resp, err := protobufs.NewWorkerManagementClient(conn).ListModels(ctx, &protobufs.ListModelsRequest{
				WorkerId: workerID,
			})
			if err != nil {
				return err
			}
			return printJSON(resp.GetModels())
		},
	}
	modelsCmd.Flags().String("worker-id", "", "Only list models owned by this worker")

	readyCmd := &cobra.Command{
		Use:     "ready [model[:version]]",
		Short:   "Check dispatcher (or model) readiness",
		Example: "  dispatchctl ready\n  dispatchctl ready classifier:v1",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()
			conn, err := dialGRPC(inferAddr)
			if err != nil {
				return err
			}
			defer conn.Close()
			client := protobufs.NewGRPCInferenceServiceClient(conn)
			if len(args) == 0 {
				resp, err := client.ServerReady(ctx, &protobufs.ServerReadyRequest{})
				if err != nil {
					return err
				}
				fmt.Printf("ready: %v\n", resp.GetReady())
				return nil
			}
			name, version := splitModel(args[0])
			resp, err := client.ModelReady(ctx, &protobufs.ModelReadyRequest{Name: name, Version: version})
			if err != nil {
				return err
			}
			fmt.Printf("model %s ready: %v\n", args[0], resp.GetReady())
			return nil
		},
	}

	registerCmd := &cobra.Command{
		Use:     "register model[:version] worker-address",
		Short:   "Manually register a model route on a dispatcher",
		Example: "  dispatchctl register echo unix:///tmp/echo.sock",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workerID, _ := cmd.Flags().GetString("worker-id")
			if workerID == "" {
				workerID = "dispatchctl-" + uuid.NewString()[:8]
			}
			name, version := splitModel(args[0])
			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()
			conn, err := dialGRPC(managementAddr)
			if err != nil {
				return err
			}
			defer conn.Close()
			resp, err := protobufs.NewWorkerManagementClient(conn).RegisterModel(ctx, &protobufs.RegisterModelRequest{
				ModelName:     name,
				ModelVersion:  version,
				WorkerAddress: args[1],
				WorkerId:      workerID,
			})
			if err != nil {
				return err
			}
			fmt.Println(resp.GetMessage())
			return nil
		},
	}
	registerCmd.Flags().String("worker-id", "", "Worker id to register under (default: random)")

	unregisterCmd := &cobra.Command{
		Use:   "unregister model[:version] worker-id",
		Short: "Manually remove a model route from a dispatcher",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, version := splitModel(args[0])
			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()
			conn, err := dialGRPC(managementAddr)
			if err != nil {
				return err
			}
			defer conn.Close()
			resp, err := protobufs.NewWorkerManagementClient(conn).UnregisterModel(ctx, &protobufs.UnregisterModelRequest{
				ModelName:    name,
				ModelVersion: version,
				WorkerId:     args[1],
			})
			if err != nil {
				return err
			}
			if !resp.GetSuccess() {
				return fmt.Errorf("%s", resp.GetMessage())
			}
			fmt.Println(resp.GetMessage())
			return nil
		},
	}

	root.AddCommand(routeCmd, registryCmd, modelsCmd, readyCmd, registerCmd, unregisterCmd)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newDirectoryClient(baseURL string) *directory.Client {
	return directory.NewClient(baseURL, zerolog.Nop())
}

func dialGRPC(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// parseCapability turns k=v arguments into a capability query.
func parseCapability(args []string) (types.Capability, error) {
	query := types.Capability{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid capability %q, want k=v", arg)
		}
		query[k] = v
	}
	return query, nil
}

// splitModel parses "name[:version]".
func splitModel(s string) (name, version string) {
	name, version, _ = strings.Cut(s, ":")
	return name, version
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
