package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatchd/internal/config"
	"dispatchd/internal/directory"
	"dispatchd/internal/dispatch"
	"dispatchd/internal/pool"
	"dispatchd/internal/registry"
	"dispatchd/internal/supervisor"
	"dispatchd/internal/workerclient"
	"dispatchd/pkg/types"
)

const serverVersion = "0.2.0"

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// Flags with environment variable defaults
	configPath := flag.String("config", envOr("DISPATCHD_CONFIG", ""), "Path to config file (.toml/.yaml/.json)")
	addr := flag.String("addr", envOr("DISPATCHD_ADDR", ":8001"), "Inference gRPC listen address")
	mgmtAddr := flag.String("management-addr", envOr("DISPATCHD_MANAGEMENT_ADDR", "127.0.0.1:8002"), "Worker management gRPC listen address")
	socketDir := flag.String("socket-dir", envOr("DISPATCHD_SOCKET_DIR", ""), "Directory for worker unix sockets (default: system temp dir)")
	directoryURL := flag.String("directory", envOr("DISPATCHD_DIRECTORY_URL", ""), "Directory base URL; empty disables registration and delegation")
	replicaID := flag.String("replica-id", envOr("DISPATCHD_REPLICA_ID", ""), "Replica id announced to the directory (default: random)")
	advertiseAddr := flag.String("advertise-addr", envOr("DISPATCHD_ADVERTISE_ADDR", ""), "Endpoint announced to the directory (default: bound inference address)")
	logLevel := flag.String("log-level", envOr("DISPATCHD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	flag.Parse()

	log := newLogger(*logLevel)

	cfg := config.Config{}
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
		}
	}
	if cfg.LogLevel != "" {
		log = newLogger(cfg.LogLevel)
	}
	if cfg.InferAddr == "" {
		cfg.InferAddr = *addr
	}
	if cfg.ManagementAddr == "" {
		cfg.ManagementAddr = *mgmtAddr
	}
	if cfg.SocketDir == "" {
		cfg.SocketDir = *socketDir
	}
	if cfg.DirectoryURL == "" {
		cfg.DirectoryURL = *directoryURL
	}
	if cfg.ReplicaID == "" {
		cfg.ReplicaID = *replicaID
	}
	if cfg.AdvertiseAddr == "" {
		cfg.AdvertiseAddr = *advertiseAddr
	}
	if cfg.ReplicaID == "" {
		cfg.ReplicaID = "dispatchd-" + uuid.NewString()[:8]
	}

	reg := registry.New(log)
	connPool := pool.New(pool.Config{
		MaxPerEndpoint: cfg.PoolMaxConns,
		SingleUse:      cfg.PoolSingleUse,
	}, log)
	workers := workerclient.New(connPool, log)
	srv := dispatch.NewServer(dispatch.Config{
		InferAddr:      cfg.InferAddr,
		ManagementAddr: cfg.ManagementAddr,
		ServerName:     "dispatchd",
		ServerVersion:  serverVersion,
	}, reg, connPool, workers, log)

	sup := supervisor.New(supervisor.Config{SocketDir: cfg.SocketDir}, log)
	// Backstop: a crashed worker must not leave stale routes behind.
	sup.SetExitHook(func(endpoint string) {
		if n := reg.UnregisterEndpoint(endpoint); n > 0 {
			log.Warn().Str("endpoint", endpoint).Int("models", n).Msg("evicted models of dead worker")
		}
		connPool.Remove(workerclient.SocketPath(endpoint))
	})

	// Delegation is wired before the listeners start accepting.
	var dirClient *directory.Client
	if cfg.DirectoryURL != "" {
		dirClient = directory.NewClient(cfg.DirectoryURL, log)
		srv.Service().SetDelegator(dispatch.NewDirectoryDelegator(dirClient, cfg.ReplicaID, log))
	}

	// Graceful shutdown (Ctrl+C / SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Run(ctx) }()

	// Wait for the listeners before spawning workers; they register through
	// the management port as soon as they come up.
	for !srv.Ready() {
		select {
		case err := <-serveErr:
			if err != nil {
				log.Fatal().Err(err).Msg("dispatcher failed to start")
			}
			// Signal arrived before startup finished.
			log.Info().Msg("dispatchd stopped")
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	log.Info().Str("infer_addr", srv.InferAddr()).Str("management_addr", srv.ManagementAddr()).
		Str("replica_id", cfg.ReplicaID).Msg("dispatchd started")

	for _, w := range cfg.Workers {
		if _, err := sup.Spawn(supervisor.WorkerSpec{Name: w.Name, Command: w.Command, Args: w.Args}); err != nil {
			sup.StopAll()
			log.Fatal().Err(err).Str("worker", w.Name).Msg("worker failed to start")
		}
	}

	if dirClient != nil {
		advertise := cfg.AdvertiseAddr
		if advertise == "" {
			advertise = srv.InferAddr()
		}
		offers := func() []types.Capability {
			out := make([]types.Capability, 0, len(cfg.Capabilities))
			for _, c := range cfg.Capabilities {
				out = append(out, c.Clone())
			}
			for _, e := range reg.Snapshot() {
				out = append(out, types.ModelCapability(e.Name, e.Version))
			}
			return out
		}
		announcer := directory.NewAnnouncer(dirClient, cfg.ReplicaID, advertise, offers, log)
		reg.SetChangeHook(announcer.Notify)
		go announcer.Run(ctx)
		log.Info().Str("directory", cfg.DirectoryURL).Str("advertise", advertise).Msg("directory registration enabled")
	}

	err := <-serveErr
	sup.StopAll()
	if err != nil {
		log.Fatal().Err(err).Msg("dispatcher exited with error")
	}
	log.Info().Msg("dispatchd stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
