// Assistant runs the conversational assistant. Subcommands serve it over
// HTTP, chat with it in the terminal, expose its tools over MCP, or write a
// starter configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/germanamz/assistant/pkg/engine"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const usageText = `Usage: assistant <command> [flags]

Commands:
  serve   Serve turns over HTTP and WebSocket
  chat    Chat in the terminal
  mcp     Serve the built-in tools over stdio MCP
  ingest  Add a text file to the knowledge base
  init    Write a config file interactively

Run "assistant <command> -h" for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "chat":
		err = runChat(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "ingest":
		err = runIngest(os.Args[2:])
	case "init":
		err = runInit(os.Args[2:])
	case "version":
		fmt.Println(version)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usageText)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usageText)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are shared by every command that starts an engine.
type commonFlags struct {
	config  *string
	envFile *string
	debug   *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config:  fs.String("config", "", "path to configuration file (default: "+defaultConfigPath+")"),
		envFile: fs.String("env", ".env", "path to .env file (ignored if missing)"),
		debug:   fs.Bool("debug", false, "log at debug level"),
	}
}

// startEngine loads .env and the config, then builds an engine. The returned
// context is cancelled on SIGINT or SIGTERM.
func startEngine(f commonFlags, logger *slog.Logger) (context.Context, context.CancelFunc, *engine.Engine, error) {
	if err := loadDotEnv(*f.envFile); err != nil {
		return nil, nil, nil, err
	}

	cfg, err := engine.LoadConfig(resolveConfigPath(*f.config))
	if err != nil {
		return nil, nil, nil, err
	}
	cfg.Logger = logger

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	eng, err := engine.New(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}

	return ctx, cancel, eng, nil
}

// newLogger logs text to stderr, which stays free for stdout protocols.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newQuietLogger only logs warnings and errors.
func newQuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
