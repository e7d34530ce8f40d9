package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/glidewm/glidewm/internal/config"
	"github.com/glidewm/glidewm/internal/daemon"
	"github.com/glidewm/glidewm/internal/dispatch"
	"github.com/glidewm/glidewm/internal/ipc"
	"github.com/glidewm/glidewm/internal/mcp"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "windows":
		os.Exit(runWindows(os.Args[2:]))
	case "tree":
		os.Exit(runTree(os.Args[2:]))
	case "cmd":
		os.Exit(runCommand(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "save":
		os.Exit(runSave(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: glidewm <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the window manager daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  windows             List managed windows")
	fmt.Fprintln(w, "  tree                Show workspace layout trees")
	fmt.Fprintln(w, "  cmd <name>          Run a command by name (e.g. focus-left)")
	fmt.Fprintln(w, "  reload              Reload daemon configuration")
	fmt.Fprintln(w, "  save                Persist the current layout")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print effective configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'glidewm <command> --help' for command-specific options.")
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := fs.String("config", "", "config file path (default: ~/.config/glidewm/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: glidewm daemon [-config path]")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	path := *cfgPath
	if path == "" {
		if p, err := config.DefaultConfigPath(); err == nil {
			path = p
		}
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := daemon.New(cfg, path, logger)
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Daemon failed: %v", err)
	}
	logger.Info("daemon stopped")
	return 0
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "output JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: glidewm status [-json]")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *asJSON || !term.IsTerminal(int(os.Stdout.Fd())) {
		return printJSON(status)
	}

	fmt.Printf("Workspaces: %d (current: %s)\n", status.Workspaces, status.Current)
	fmt.Printf("Windows:    %d", status.Windows)
	if status.Degraded > 0 {
		fmt.Printf(" (%d degraded)", status.Degraded)
	}
	fmt.Println()
	fmt.Printf("Displays:   %s\n", strings.Join(status.Displays, ", "))
	return 0
}

func runWindows(args []string) int {
	fs := flag.NewFlagSet("windows", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "output JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: glidewm windows [-json]")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	data, err := ipc.NewClient().GetWindows()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *asJSON || !term.IsTerminal(int(os.Stdout.Fd())) {
		return printJSON(data)
	}

	wins := data.Windows
	sort.Slice(wins, func(i, j int) bool {
		if wins[i].Workspace != wins[j].Workspace {
			return wins[i].Workspace < wins[j].Workspace
		}
		return wins[i].ID < wins[j].ID
	})
	for _, w := range wins {
		marks := ""
		if w.Focused {
			marks += "*"
		}
		if w.Floating {
			marks += "~"
		}
		if w.Degraded {
			marks += "!"
		}
		fmt.Printf("%-10d %-4s %-12s %-20s %s\n", w.ID, marks, w.Workspace, w.App, w.Frame.String())
	}
	return 0
}

func runTree(args []string) int {
	fs := flag.NewFlagSet("tree", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "output JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: glidewm tree [-json]")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	data, err := ipc.NewClient().GetTree()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *asJSON {
		return printJSON(data)
	}

	out, err := yaml.Marshal(data.Workspaces)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	os.Stdout.Write(out)
	return 0
}

func runCommand(args []string) int {
	fs := flag.NewFlagSet("cmd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: glidewm cmd <name>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Available commands:")
		for _, name := range dispatch.Commands() {
			fmt.Fprintf(os.Stderr, "  %s\n", name)
		}
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	if err := ipc.NewClient().RunCommand(fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runReload(args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, "Usage: glidewm reload")
		return 2
	}
	if err := ipc.NewClient().Reload(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println("Reload requested.")
	return 0
}

func runSave(args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, "Usage: glidewm save")
		return 2
	}
	if err := ipc.NewClient().SaveLayout(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println("Layout save requested.")
	return 0
}

func runConfig(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: glidewm config <validate|print> [-config path]")
		return 2
	}
	sub := args[0]

	fs := flag.NewFlagSet("config "+sub, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	path := *cfgPath
	if path == "" {
		if p, err := config.DefaultConfigPath(); err == nil {
			path = p
		}
	}

	cfg, err := config.LoadFromPath(path)
	switch sub {
	case "validate":
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid: %v\n", err)
			return 1
		}
		fmt.Printf("OK: %s\n", path)
		return 0
	case "print":
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		out, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		os.Stdout.Write(out)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", sub)
		return 2
	}
}

func runMCP(args []string) int {
	if len(args) < 1 || args[0] != "serve" {
		fmt.Fprintln(os.Stderr, "Usage: glidewm mcp serve")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := mcp.NewServer()
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "MCP server failed: %v\n", err)
		return 1
	}
	return 0
}

func printJSON(v interface{}) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
