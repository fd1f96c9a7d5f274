// Package main is the yomu CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/cli"
	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/ingest"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/server"
	"github.com/hyperjump/yomu/internal/supervisor"
	"github.com/hyperjump/yomu/internal/watcher"
	"github.com/hyperjump/yomu/pkg/utils"
)

var version = "dev"

const defaultServerURL = "http://localhost:8080"

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".yomu", "config.yaml")
	}
	return filepath.Join(home, ".yomu", "config.yaml")
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath() {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	var err error
	switch command {
	case "server":
		err = runServer(args)
	case "init":
		err = runInit(args)
	case "refresh":
		err = runRefresh(args)
	case "trending":
		err = runTrending(args)
	case "feed":
		err = runFeed(args)
	case "search":
		err = runSearch(args)
	case "interact":
		err = runInteract(args)
	case "stats":
		err = runStats(args)
	case "version", "--version", "-v":
		fmt.Printf("yomu version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	noWatch := fs.Bool("no-watch", false, "do not reload sources when the config file changes")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	srv := server.NewServer(server.Deps{
		Feeds:    components.Assembler,
		Catalog:  components.Catalog,
		Feedback: components.Feedback,
		Ingest:   components.Scheduler,
		Model:    components.Engine,
		Auth:     server.NewTokenAuth(cfg.Auth),
	}, &cfg.Server, &cfg.Storage, logger)

	tree := supervisor.NewTree(logger, supervisor.TreeConfig{})
	tree.AddPipelineService(components.Feedback)
	tree.AddPipelineService(components.Scheduler)
	if !*noWatch {
		tree.AddPipelineService(watcher.NewWatcher(resolvedConfigPath,
			watcher.SourcesReloader(components.Scheduler, logger),
			watcher.WithLogger(logger)))
	}
	tree.AddAPIService(srv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)
	logger.Info("Shutting down...")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path to create")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(args)

	if _, err := os.Stat(*configPath); err == nil && !*force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", *configPath)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Sources.NewsAPI.Enabled = true
	cfg.Sources.GNews.Enabled = true
	cfg.Sources.RSS.Enabled = true
	if err := config.Save(*configPath, cfg); err != nil {
		return err
	}
	fmt.Printf("Config written to %s\n", *configPath)
	fmt.Println("Set YOMU_NEWSAPI_KEY and YOMU_GNEWS_KEY to enable the API sources; RSS feeds work without keys.")
	return nil
}

// clientFlags are shared by the subcommands that talk to a running server.
type clientFlags struct {
	server *string
	token  *string
	user   *string
	output *string
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		server: fs.String("server", defaultServerURL, "server URL"),
		token:  fs.String("token", os.Getenv("YOMU_TOKEN"), "bearer token (default $YOMU_TOKEN)"),
		user:   fs.String("user", "", "user id sent as X-User-ID when the server allows it"),
		output: fs.String("output", "text", "output format: text or json"),
	}
}

func (f clientFlags) client() *cli.Client {
	return cli.NewClient(*f.server, *f.token, *f.user)
}

func (f clientFlags) format() cli.OutputFormat {
	return cli.OutputFormat(strings.ToLower(*f.output))
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuery joins positional args so multi-word queries work with or
// without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runRefresh(args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	cf := addClientFlags(fs)
	configPath := fs.String("config", defaultConfigPath(), "config file path (used when --server is empty)")
	_ = fs.Parse(args)

	var (
		report *ingest.Report
		err    error
	)
	if *cf.server == "" {
		report, err = refreshLocal(*configPath)
	} else {
		report, err = cf.client().Refresh(context.Background())
	}
	if report != nil && (err == nil || report.Ingested > 0 || len(report.FailedSources) > 0) {
		if werr := cli.WriteReport(os.Stdout, report, cf.format()); werr != nil {
			return werr
		}
	}
	return err
}

// refreshLocal runs one cycle in-process against the configured storage.
func refreshLocal(configPath string) (*ingest.Report, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	report, err := components.Scheduler.Refresh(context.Background())
	return &report, err
}

func runTrending(args []string) error {
	fs := flag.NewFlagSet("trending", flag.ExitOnError)
	cf := addClientFlags(fs)
	category := fs.String("category", "", "restrict to a category")
	limit := fs.Int("limit", 10, "number of articles")
	_ = fs.Parse(args)

	resp, err := cf.client().Trending(context.Background(), *category, *limit)
	if err != nil {
		return err
	}
	return cli.WriteFeed(os.Stdout, resp, cf.format())
}

func runFeed(args []string) error {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	cf := addClientFlags(fs)
	category := fs.String("category", "", "restrict to a category")
	limit := fs.Int("limit", 10, "number of articles")
	offset := fs.Int("offset", 0, "number of articles to skip")
	_ = fs.Parse(args)

	resp, err := cf.client().Feed(context.Background(), *category, *limit, *offset)
	if err != nil {
		return err
	}
	return cli.WriteFeed(os.Stdout, resp, cf.format())
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	cf := addClientFlags(fs)
	category := fs.String("category", "", "restrict to a category")
	limit := fs.Int("limit", 10, "number of results")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: yomu search [flags] <query>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(args))

	query := buildQuery(fs.Args())
	if query == "" {
		fs.Usage()
		return errors.New("query is required")
	}
	resp, err := cf.client().Search(context.Background(), query, *category, *limit)
	if err != nil {
		return err
	}
	return cli.WriteFeed(os.Stdout, resp, cf.format())
}

func runInteract(args []string) error {
	fs := flag.NewFlagSet("interact", flag.ExitOnError)
	cf := addClientFlags(fs)
	duration := fs.Float64("duration", 0, "dwell time in seconds (for read)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: yomu interact [flags] <article-id> <kind>\n\nKinds: view, click, read, like, share, bookmark, external_click\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("article id and kind are required")
	}
	kind, err := models.ParseInteractionKind(fs.Arg(1))
	if err != nil {
		return err
	}
	ack, err := cf.client().Interact(context.Background(), fs.Arg(0), kind, *duration)
	if err != nil {
		return err
	}
	if cf.format() == cli.OutputJSON {
		fmt.Printf("{\"event_id\":%q,\"duplicate\":%t}\n", ack.EventID, ack.Duplicate)
		return nil
	}
	if ack.Duplicate {
		fmt.Printf("Already recorded: %s\n", ack.EventID)
	} else {
		fmt.Printf("Recorded: %s\n", ack.EventID)
	}
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cf := addClientFlags(fs)
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	stats, err := cf.client().Stats(ctx)
	if err != nil {
		return err
	}
	return cli.WriteStats(os.Stdout, stats, cf.format())
}

func printUsage() {
	fmt.Println(`yomu - Personalized news aggregation

Usage:
  yomu server [flags]                      Start the HTTP server, scheduler and feedback loop
  yomu init [flags]                        Write a default config file
  yomu refresh [flags]                     Run an ingestion cycle now
  yomu trending [flags]                    Show trending articles
  yomu feed [flags]                        Show your personalized feed
  yomu search [flags] <query>              Search articles
  yomu interact [flags] <article-id> <kind> Record an interaction
  yomu stats [flags]                       Show catalog statistics
  yomu version                             Show version
  yomu help                                Show this help

Server Flags:
  --config string    Config file path (default: ~/.yomu/config.yaml)
  --debug            Enable debug logging
  --no-watch         Do not reload sources when the config file changes

Client Flags (refresh, trending, feed, search, interact, stats):
  --server string    Server URL (default: http://localhost:8080). For refresh, empty runs in-process.
  --token string     Bearer token (default: $YOMU_TOKEN)
  --user string      User id sent as X-User-ID (development servers only)
  --output string    Output format: text or json (default: text)
  --category string  Restrict to a category (trending, feed, search)
  --limit int        Number of articles (default: 10)
  --offset int       Articles to skip (feed)
  --duration float   Dwell seconds (interact)

Examples:
  yomu init
  yomu server
  yomu refresh
  yomu refresh --server ""            # run a cycle without a server
  yomu trending --category technology
  yomu feed --limit 20 --offset 20
  yomu search "climate summit"
  yomu interact --duration 95 3f2c... read
  yomu stats --output json`)
}
