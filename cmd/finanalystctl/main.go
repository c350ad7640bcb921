// Command finanalystctl is a small MCP client for the finanalyst server.
//
// It starts the server as a subprocess (or connects over Streamable HTTP),
// then lists its tools or calls one and prints the text result.
//
//	finanalystctl -server "finanalyst -config finanalyst.yaml" list
//	finanalystctl call save_code '{"code":"print(42)"}'
//	finanalystctl call run_code_and_show_plot
//	finanalystctl -url http://localhost:8090/mcp call get_saved_code
//
// Each invocation is its own session; state survives between calls only over
// Streamable HTTP, where sessions share the server process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/finanalyst/internal/mcp"
	"github.com/MrWong99/finanalyst/internal/mcp/mcpclient"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("finanalystctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	serverCmd := fs.String("server", "finanalyst", "command that starts the MCP server over stdio")
	url := fs.String("url", "", "Streamable HTTP endpoint; overrides -server")
	timeout := fs.Duration("timeout", 5*time.Minute, "overall deadline")
	verbose := fs.Bool("v", false, "log at debug level")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: finanalystctl [flags] list | call <tool> [json-args]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	cmd, err := parseCommand(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "finanalystctl: %v\n", err)
		fs.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	client := mcpclient.New("finanalystctl", version)
	defer client.Close()
	if err := client.Connect(ctx, serverConfig(*serverCmd, *url)); err != nil {
		fmt.Fprintf(stderr, "finanalystctl: %v\n", err)
		return 1
	}

	switch cmd.verb {
	case "list":
		for _, t := range client.Tools() {
			fmt.Fprintf(stdout, "%s\n    %s\n", t.Name, t.Description)
		}
		return 0
	default:
		res, err := client.CallTool(ctx, cmd.tool, cmd.args)
		if err != nil {
			fmt.Fprintf(stderr, "finanalystctl: %v\n", err)
			return 1
		}
		slog.Debug("tool returned", "tool", cmd.tool, "duration_ms", res.DurationMs, "is_error", res.IsError)
		fmt.Fprintln(stdout, res.Content)
		if res.IsError {
			return 1
		}
		return 0
	}
}

type command struct {
	verb string
	tool string
	args string
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errors.New("missing command")
	}
	switch args[0] {
	case "list":
		if len(args) != 1 {
			return command{}, errors.New("list takes no arguments")
		}
		return command{verb: "list"}, nil
	case "call":
		if len(args) < 2 || len(args) > 3 {
			return command{}, errors.New("call needs a tool name and optional JSON arguments")
		}
		c := command{verb: "call", tool: args[1]}
		if len(args) == 3 {
			c.args = strings.TrimSpace(args[2])
		}
		return c, nil
	default:
		return command{}, fmt.Errorf("unknown command %q", args[0])
	}
}

func serverConfig(serverCmd, url string) mcp.ServerConfig {
	if url != "" {
		return mcp.ServerConfig{Name: "finanalyst", Transport: mcp.TransportStreamableHTTP, URL: url}
	}
	return mcp.ServerConfig{Name: "finanalyst", Transport: mcp.TransportStdio, Command: serverCmd}
}
