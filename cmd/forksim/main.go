// Command forksim runs a single forked-network node: an RPC-reachable
// facade over a live read-through object store, backed by whatever
// remote network the caller points it at. Flags and exit codes follow
// §6.3; the cobra tree shape and env-driven defaults are grounded in
// the original synnergy CLI's root command wiring.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"forknet/core"
	"forknet/pkg/config"
	"forknet/pkg/utils"
)

// Exit codes per §6.3.
const (
	exitClean               = 0
	exitBadConfiguration    = 2
	exitRemoteBootstrapFail = 3
	exitStateIncompatible   = 4
	exitInvariantViolation  = 5
)

func main() {
	_ = godotenv.Load()
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(exitFromError(err))
	}
}

// cliError pins a specific exit code to a cobra command failure.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func exitFromError(err error) int {
	var ce *cliError
	if errorsAs(err, &ce) {
		return ce.code
	}
	return exitBadConfiguration
}

// errorsAs avoids importing "errors" into main just for one As call
// site; kept tiny and local rather than pulled in as a dependency.
func errorsAs(err error, target **cliError) bool {
	ce, ok := err.(*cliError)
	if !ok {
		return false
	}
	*target = ce
	return true
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "fork",
		Short: "Run and drive a forked-network execution sandbox",
	}
	root.AddCommand(newStartCommand())
	root.AddCommand(newNativesCommand())
	return root
}

func newStartCommand() *cobra.Command {
	var (
		network    string
		checkpoint uint64
		port       int
		statePath  string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a forked node and serve its JSON-RPC surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), network, checkpoint, port, statePath)
		},
	}
	cmd.Flags().StringVar(&network, "network", utils.EnvOrDefault("FORKNET_NETWORK", ""), "remote network name to fork from")
	cmd.Flags().Uint64Var(&checkpoint, "checkpoint", utils.EnvOrDefaultUint64("FORKNET_CHECKPOINT", 0), "checkpoint to pin the fork at (0 = latest)")
	cmd.Flags().IntVar(&port, "port", utils.EnvOrDefaultInt("FORKNET_PORT", 9000), "RPC listen port")
	cmd.Flags().StringVar(&statePath, "state", utils.EnvOrDefault("FORKNET_STATE_PATH", ""), "persisted state file to load/save (optional)")
	return cmd
}

func newNativesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "natives",
		Short: "List every registered native module::function",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, n := range core.DebugDumpNatives() {
				fmt.Println(n)
			}
			return nil
		},
	}
}

func runStart(ctx context.Context, network string, checkpoint uint64, port int, statePath string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log := logrus.New()
		log.WithError(err).Warn("no config file found, continuing with CLI flags and defaults")
		d := config.Defaults()
		cfg = &d
	}
	if network == "" {
		network = cfg.Network.Name
	}
	if network == "" {
		return &cliError{exitBadConfiguration, fmt.Errorf("a --network (or FORKNET_NETWORK) is required")}
	}

	log := logrus.New()
	level, lerr := logrus.ParseLevel(cfg.Logging.Level)
	if lerr != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{})

	metrics := core.NewMetrics()

	remote := core.NewHTTPRemoteReader(cfg.Network.RemoteURL, core.CheckpointSeq(checkpoint))

	remoteCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	_, _, err = remote.CheckpointInfo(remoteCtx)
	cancel()
	if err != nil {
		log.WithError(err).Error("failed to reach remote network")
		return &cliError{exitRemoteBootstrapFail, err}
	}

	var facade *core.Facade
	if statePath != "" {
		if _, statErr := os.Stat(statePath); statErr == nil {
			facade, err = core.LoadState(ctx, statePath, remote, metrics)
			if err != nil {
				log.WithError(err).Error("state file incompatible")
				return &cliError{exitStateIncompatible, err}
			}
		}
	}
	if facade == nil {
		facade = core.NewFacade(network, core.CheckpointSeq(checkpoint), remote, metrics)
	}

	reporter := core.NewHealthReporter(metrics, facade.Overlay())
	collectorCtx, stopCollector := context.WithCancel(ctx)
	defer stopCollector()
	go reporter.RunMetricsCollector(collectorCtx, 5*time.Second)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = reporter.StartMetricsServer(fmt.Sprintf(":%d", cfg.Metrics.Port))
	}

	addr := fmt.Sprintf(":%d", port)
	server := core.NewRPCServer(facade, addr)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("rpc server exited")
			return &cliError{exitInvariantViolation, err}
		}
	case <-sigCh:
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("rpc server shutdown error")
		}
		if metricsSrv != nil {
			if err := reporter.ShutdownMetricsServer(shutdownCtx, metricsSrv); err != nil {
				log.WithError(err).Warn("metrics server shutdown error")
			}
		}
		if statePath != "" {
			if err := core.SaveState(facade, statePath); err != nil {
				log.WithError(err).Error("failed to save state on shutdown")
			}
		}
	}
	return nil
}
