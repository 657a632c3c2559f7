package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tubestreak/internal/config"
	"github.com/hpungsan/tubestreak/internal/db"
	"github.com/hpungsan/tubestreak/internal/host"
	"github.com/hpungsan/tubestreak/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"share": true, "open": true, "host": true, "status": true,
	"encode": true, "decode": true, "backup": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	// Global flags before the subcommand, e.g. "tubestreak --debug host"
	if len(arg) > 1 && arg[0] == '-' {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _         _                _                 _
  | |_ _   _| |__   ___  ___| |_ _ __ ___  __ _| | __
  | __| | | | '_ \ / _ \/ __| __| '__/ _ \/ _' | |/ /
  | |_| |_| | |_) |  __/\__ \ |_| | |  __/ (_| |   <
   \__|\__,_|_.__/ \___||___/\__|_|  \___|\__,_|_|\_\

  Share handoff between the share extension and the app

  Usage: tubestreak <command> [options]
         tubestreak --help

  MCP server mode requires piped input.`)
}

// setupLogging configures logrus from the config file. Global CLI flags may
// override the level later.
func setupLogging(cfg *config.Config) {
	logrus.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}
}

// openStore opens the shared backup database unless the backup is disabled.
func openStore(baseDir string, cfg *config.Config) (*sql.DB, error) {
	if cfg.BackupDisabled {
		return nil, nil
	}
	database, err := db.Init(baseDir)
	if err != nil {
		return nil, err
	}
	db.ConfigurePool(database, cfg)
	return database, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// The launch latch belongs to this process and is shared by every
	// ingestor it creates.
	latch := host.NewLatch()

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, config.DefaultConfig(), latch)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".tubestreak")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logrus.Warnf("config: unknown disabled_tools %v", unknown)
	}

	database, err := openStore(baseDir, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	if database != nil {
		defer database.Close()
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(database, cfg, latch)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'tubestreak --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	ext, err := newExtension(database, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := mcp.Run(database, cfg, ext, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
