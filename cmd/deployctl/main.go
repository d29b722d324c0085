package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/systemstart/deployctl/pkg/api"
	"github.com/systemstart/deployctl/pkg/cluster"
	"github.com/systemstart/deployctl/pkg/command"
	"github.com/systemstart/deployctl/pkg/deploy"
	"github.com/systemstart/deployctl/pkg/history"
	"github.com/systemstart/deployctl/pkg/logging"
)

var version = "dev"

const (
	_ = iota
	exitUsage
	exitDotenvError
	exitLoggingError
	exitLoadConfigFailed
	exitHistoryError
	exitClusterFailed
	exitDeployFailed
)

var (
	configPath  string
	loggingType string
	logLevel    string
	showVersion bool
)

func init() {
	flag.StringVar(
		&configPath,
		"config",
		api.DefaultConfigFilename,
		"configuration file")
	flag.StringVar(
		&loggingType,
		"logging-type",
		"tint",
		"logging type: json, text or tint")
	flag.StringVar(
		&logLevel,
		"log-level",
		"info",
		"logging level: debug, info, warn, error")
	flag.BoolVar(
		&showVersion,
		"version",
		false,
		"print version and exit")
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: deployctl [flags] <command>

commands:
  cluster status|start|stop|restart   manage the local cluster
  deploy -env <name> [-skip-build] [-skip-monitoring] [-port-forward]
                                      run the deployment pipeline
  history [-limit N]                  list recent deployment runs

flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := logging.Initialize(loggingType, logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitLoggingError)
	}

	includeEnv()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(exitUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "cluster":
		runCluster(ctx, args[1:])
	case "deploy":
		runDeploy(ctx, args[1:])
	case "history":
		runHistory(args[1:])
	default:
		slog.Error("unknown command", "command", args[0])
		usage()
		os.Exit(exitUsage)
	}
}

func runCluster(ctx context.Context, args []string) {
	if len(args) != 1 {
		slog.Error("cluster requires exactly one action: status, start, stop or restart")
		os.Exit(exitUsage)
	}

	cfg := loadConfig()
	lc := cluster.New(clusterConfig(cfg), command.NewRunner())

	switch args[0] {
	case "status":
		state := "not running"
		if lc.Status(ctx) {
			state = "running"
		}
		fmt.Printf("cluster is %s\n", state)
	case "start":
		exitUnless(lc.Start(ctx), exitClusterFailed)
	case "stop":
		exitUnless(lc.Stop(ctx), exitClusterFailed)
	case "restart":
		exitUnless(lc.Restart(ctx), exitClusterFailed)
	default:
		slog.Error("unknown cluster action", "action", args[0])
		os.Exit(exitUsage)
	}
}

func runDeploy(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	env := fs.String("env", "dev", "target environment")
	skipBuild := fs.Bool("skip-build", false, "skip the application and image build stages")
	skipMonitoring := fs.Bool("skip-monitoring", false, "skip the monitoring stack stage")
	portForward := fs.Bool("port-forward", false, "establish port forwards after a successful deploy")
	_ = fs.Parse(args)

	cfg := loadConfig()
	runner := command.NewRunner()
	lc := cluster.New(clusterConfig(cfg), runner)
	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	d := deploy.New(cfg, runner, lc, store)
	run, err := d.Run(ctx, deploy.Options{
		Env:            *env,
		SkipBuild:      *skipBuild,
		SkipMonitoring: *skipMonitoring,
		PortForward:    *portForward,
	})
	if err != nil {
		slog.Error("deployment failed", "error", err)
		os.Exit(exitDeployFailed)
	}
	exitUnless(run.Success, exitDeployFailed)
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 10, "maximum number of runs to list")
	_ = fs.Parse(args)

	cfg := loadConfig()
	store := openHistory(cfg)
	if store == nil {
		slog.Error("history is not configured, set history.path in the config")
		os.Exit(exitHistoryError)
	}
	defer store.Close()

	runs, err := store.RecentRuns(*limit)
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		os.Exit(exitHistoryError)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tENVIRONMENT\tSTATUS\tSTARTED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			r.ID, r.Environment, r.Status,
			r.StartedAt.Format(time.DateTime), r.Duration)
	}
	w.Flush()
}

func loadConfig() *api.Config {
	cfg, err := api.LoadConfig(configPath)
	if err != nil {
		slog.Error("failed to load configuration", "filename", configPath, "error", err)
		os.Exit(exitLoadConfigFailed)
	}
	return cfg
}

func clusterConfig(cfg *api.Config) cluster.Config {
	cc := cluster.DefaultConfig()
	cc.Binary = cfg.Cluster.Binary
	cc.Kubectl = cfg.Cluster.Kubectl
	if len(cfg.Cluster.StartArgs) > 0 {
		cc.StartArgs = cfg.Cluster.StartArgs
	}
	cc.StartTimeout = cfg.Cluster.StartTimeout.Std()
	cc.WaitDeadline = cfg.Cluster.WaitDeadline.Std()
	return cc
}

func openHistory(cfg *api.Config) *history.Storage {
	if cfg.History.Path == "" {
		return nil
	}
	store, err := history.Open(cfg.ResolvePath(cfg.History.Path))
	if err != nil {
		slog.Error("failed to open history database", "error", err)
		os.Exit(exitHistoryError)
	}
	return store
}

func exitUnless(ok bool, code int) {
	if !ok {
		os.Exit(code)
	}
}

func includeEnv() {
	err := godotenv.Load()
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to load .env", "error", err)
			os.Exit(exitDotenvError)
		}
		slog.Debug("no .env file found")
	} else {
		slog.Info("using .env file")
	}
}
