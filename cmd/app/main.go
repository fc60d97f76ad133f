package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/algiz/internal"
	"github.com/starford/algiz/internal/archiver"
	"github.com/starford/algiz/internal/ledger"
	"github.com/starford/algiz/internal/mcpserver"
	"github.com/starford/algiz/internal/notify"
	"github.com/starford/algiz/internal/storage"
	"github.com/starford/algiz/internal/wayback"
	pkgconfig "github.com/starford/algiz/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfPresent(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// app bundles the pieces an archival command needs.
type app struct {
	cfg    *internal.Config
	rec    ledger.Recorder
	arch   *archiver.Service
	client wayback.Archiver
}

func (a *app) close() {
	if a.rec != nil {
		_ = a.rec.Close()
	}
}

// buildApp wires storage, ledger, archival client and orchestrator for a
// one-shot CLI run. quiet suppresses console progress (stdin mode, where
// stdout carries the patched text).
func buildApp(cmd *cli.Command, quiet bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	rec, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}

	profile := cfg.Profile()
	client := wayback.New(cfg.Wayback.ClientOptions(profile, logger))

	var n notify.Notifier = notify.Console{Verbose: cmd.Bool("verbose")}
	if quiet {
		n = notify.Nop{}
	}

	arch := archiver.New(store, client, rec, profile, logger, n)
	return &app{cfg: cfg, rec: rec, arch: arch, client: client}, nil
}

func runFile(ctx context.Context, cmd *cli.Command) error {
	useStdin := cmd.Bool("stdin")

	a, err := buildApp(cmd, useStdin)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.Wayback.RequireCredentials(); err != nil {
		return err
	}

	force := cmd.Bool("force")

	if useStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		patched, _ := a.arch.ArchiveText(ctx, string(data), force)
		fmt.Print(patched)
		return nil
	}

	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: algiz file <path>")
	}
	_, err = a.arch.ArchiveDocument(ctx, path, force)
	return err
}

func runVault(ctx context.Context, cmd *cli.Command) error {
	a, err := buildApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.Wayback.RequireCredentials(); err != nil {
		return err
	}

	_, err = a.arch.ArchiveVault(ctx, cmd.Bool("force"))
	return err
}

func runRetry(ctx context.Context, cmd *cli.Command) error {
	a, err := buildApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.Wayback.RequireCredentials(); err != nil {
		return err
	}

	_, err = a.arch.RetryFailures(ctx, archiver.RetryOptions{
		SnapshotPath: cmd.String("file"),
		Force:        cmd.Bool("force"),
	})
	return err
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	a, err := buildApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	format, err := ledger.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	entries, err := a.rec.All()
	if err != nil {
		return err
	}

	out := cmd.String("out")
	if out == "" || out == "-" {
		return ledger.Export(os.Stdout, format, entries)
	}
	if err := ledger.WriteSnapshot(out, format, entries); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d failure(s) to %s\n", len(entries), out)
	return nil
}

func runClear(ctx context.Context, cmd *cli.Command) error {
	a, err := buildApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.rec.Count()
	if err != nil {
		return err
	}
	if err := a.rec.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "cleared %d failure(s)\n", n)
	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	a, err := buildApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	srv := mcpserver.New(a.arch, a.rec, a.client)
	return srv.ServeStdio()
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
	verboseFlag := &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Print archived and skipped links, not just failures",
	}
	forceFlag := &cli.BoolFlag{
		Name:  "force",
		Usage: "Re-archive links that already carry a fresh annotation",
	}

	cmd := &cli.Command{
		Name:  "algiz",
		Usage: "Archive external links in Markdown documents and annotate them with archived copies",
		Flags: []cli.Flag{configFlag, verboseFlag},
		Commands: []*cli.Command{
			{
				Name:      "file",
				Usage:     "Archive every external link in one document",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					forceFlag,
					&cli.BoolFlag{
						Name:  "stdin",
						Usage: "Read text from stdin and write the patched text to stdout",
					},
				},
				Action: runFile,
			},
			{
				Name:   "vault",
				Usage:  "Archive every eligible document in the vault",
				Flags:  []cli.Flag{forceFlag},
				Action: runVault,
			},
			{
				Name:  "retry",
				Usage: "Re-attempt failed archivals from the ledger or a snapshot file",
				Flags: []cli.Flag{
					forceFlag,
					&cli.StringFlag{
						Name:  "file",
						Usage: "Retry from a JSON or CSV snapshot instead of the ledger",
					},
				},
				Action: runRetry,
			},
			{
				Name:  "export",
				Usage: "Export recorded failures as JSON or CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Snapshot format: json or csv",
						Value: "json",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Output path (- for stdout)",
						Value: "-",
					},
				},
				Action: runExport,
			},
			{
				Name:   "clear",
				Usage:  "Remove every recorded failure from the ledger",
				Action: runClear,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server with the vault watcher",
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdin/stdout",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
