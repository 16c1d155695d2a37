// Command pipelinectl is the operator CLI for the ingestion pipeline,
// grounded on the teacher's cmd/lci entrypoint: a urfave/cli/v2 app
// whose top-level flags configure the process and whose subcommands
// (run, status, stop, mcp, checkpoint) mirror the teacher's own
// search/grep/mcp/version command split, with status/stop dialing the
// running pipeline's admin Unix socket exactly as the teacher's CLI
// commands talk to its shared index server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Amicidal/codegraph-ingest/internal/checkpoint"
	"github.com/Amicidal/codegraph-ingest/internal/fanout"
	"github.com/Amicidal/codegraph-ingest/internal/graph"
	"github.com/Amicidal/codegraph-ingest/internal/mcpadmin"
	"github.com/Amicidal/codegraph-ingest/internal/pipeline"
	"github.com/Amicidal/codegraph-ingest/internal/sink"
	"github.com/Amicidal/codegraph-ingest/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "pipelinectl",
		Usage:   "operate the code-graph ingestion pipeline",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Usage: "project root the pipeline ingests from", Value: "."},
			&cli.StringFlag{Name: "socket", Usage: "admin Unix socket path (default: derived from --root)"},
			&cli.StringSliceFlag{Name: "include", Usage: "glob patterns a change event's path must match (default: match everything)"},
			&cli.StringSliceFlag{Name: "exclude", Usage: "glob patterns that exclude a change event's path"},
		},
		Commands: []*cli.Command{
			runCommand,
			statusCommand,
			stopCommand,
			mcpCommand,
			checkpointCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "pipelinectl:", err)
		os.Exit(1)
	}
}

// defaultSocketPath derives a project-specific admin socket path from
// root, grounded on the teacher's internal/server.GetSocketPathForRoot
// (hash-of-absolute-path naming so multiple projects' pipelines can
// run concurrently without colliding).
func defaultSocketPath(root string) string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	hash := uint32(0)
	for _, c := range absRoot {
		hash = hash*31 + uint32(c)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("pipelinectl-%08x.sock", hash))
}

func socketPath(c *cli.Context) string {
	if s := c.String("socket"); s != "" {
		return s
	}
	return defaultSocketPath(c.String("root"))
}

// buildConfig applies the top-level include/exclude/root flags on top
// of pipeline.DefaultConfig, grounded on the teacher's
// loadConfigWithOverrides (CLI flags layered over defaults).
func buildConfig(c *cli.Context, gs sink.GraphSink) pipeline.Config {
	cfg := pipeline.DefaultConfig(c.String("root"), gs)
	cfg.Include = c.StringSlice("include")
	cfg.Exclude = c.StringSlice("exclude")
	return cfg
}

// adminHTTPClient dials the admin Unix socket, grounded on the
// teacher's pattern of an http.Client with a unix-dialing Transport
// talking to internal/server.IndexServer.
func adminHTTPClient(socket string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		},
		Timeout: 5 * time.Second,
	}
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "start the pipeline, its admin socket, and the subscription fan-out server in the foreground",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "listen", Usage: "address the fan-out websocket server listens on", Value: ":8900"},
		&cli.StringFlag{Name: "jwt-secret", Usage: "HS256 secret validating fan-out subscriber tokens", EnvVars: []string{"PIPELINECTL_JWT_SECRET"}, Value: "change-me"},
	},
	Action: func(c *cli.Context) error {
		log := slog.Default().With("component", "pipelinectl")

		gs := sink.NewFakeGraphSink()
		p := pipeline.New(buildConfig(c, gs))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("start pipeline: %w", err)
		}

		admin := pipeline.NewAdminServer(p, socketPath(c))
		if err := admin.Start(); err != nil {
			p.Stop(context.Background())
			return fmt.Errorf("start admin server: %w", err)
		}
		log.Info("admin socket listening", "path", socketPath(c))

		manager := fanout.NewManager()
		auth := fanout.NewAuthenticator(c.String("jwt-secret"))
		httpSrv := &http.Server{Addr: c.String("listen"), Handler: fanout.NewServer(manager, auth)}

		stopSweep := make(chan struct{})
		go manager.HeartbeatSweep(30*time.Second, stopSweep)

		serveErr := make(chan error, 1)
		go func() {
			log.Info("fan-out server listening", "addr", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serveErr <- err
				return
			}
			serveErr <- nil
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		shutdown := func() {
			close(stopSweep)
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			httpSrv.Shutdown(shutdownCtx)
			admin.Shutdown(shutdownCtx)
		}

		select {
		case err := <-serveErr:
			shutdown()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			p.Stop(stopCtx)
			return err
		case sig := <-sigCh:
			log.Info("received signal, shutting down", "signal", sig.String())
			shutdown()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			return p.Stop(stopCtx)
		}
	},
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "report a running pipeline's lifecycle state, queue depth, worker count, and dead-letter count",
	Action: func(c *cli.Context) error {
		client := adminHTTPClient(socketPath(c))
		resp, err := client.Get("http://admin/status")
		if err != nil {
			return fmt.Errorf("dial admin socket %s: %w (is 'pipelinectl run' running for this root?)", socketPath(c), err)
		}
		defer resp.Body.Close()

		var body map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decode status response: %w", err)
		}
		encoded, _ := json.MarshalIndent(body, "", "  ")
		fmt.Println(string(encoded))
		return nil
	},
}

var stopCommand = &cli.Command{
	Name:  "stop",
	Usage: "request a graceful shutdown of a running pipeline",
	Action: func(c *cli.Context) error {
		client := adminHTTPClient(socketPath(c))
		resp, err := client.Get("http://admin/shutdown")
		if err != nil {
			return fmt.Errorf("dial admin socket %s: %w (is 'pipelinectl run' running for this root?)", socketPath(c), err)
		}
		defer resp.Body.Close()

		var body map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decode shutdown response: %w", err)
		}
		fmt.Printf("%v\n", body["message"])
		return nil
	},
}

var mcpCommand = &cli.Command{
	Name:  "mcp",
	Usage: "run the read-only admin inspection MCP server over stdio",
	Action: func(c *cli.Context) error {
		gs := sink.NewFakeGraphSink()
		p := pipeline.New(buildConfig(c, gs))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("start pipeline: %w", err)
		}
		defer p.Stop(context.Background())

		checkpoints := checkpoint.NewManager(newMemGraphReader(gs))
		admin := mcpadmin.NewServer(p.SymbolIndex(), checkpoints, p)
		return admin.Run(ctx)
	},
}

var checkpointCommand = &cli.Command{
	Name:  "checkpoint",
	Usage: "inspect checkpoint export files",
	Subcommands: []*cli.Command{
		{
			Name:      "inspect",
			Usage:     "print a checkpoint export file's metadata, member ids, and captured relationships",
			ArgsUsage: "<export.json>",
			Action: func(c *cli.Context) error {
				path := c.Args().First()
				if path == "" {
					return fmt.Errorf("usage: pipelinectl checkpoint inspect <export.json>")
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				var export graph.CheckpointExport
				if err := json.Unmarshal(data, &export); err != nil {
					return fmt.Errorf("decode %s: %w", path, err)
				}

				fmt.Printf("checkpoint %s (reason=%s, hopLimit=%d, createdAt=%s)\n",
					export.Checkpoint.ID, export.Checkpoint.Reason, export.Checkpoint.HopLimit, export.Checkpoint.CreatedAt.Format(time.RFC3339))
				fmt.Printf("members (%d):\n", len(export.Members))
				for _, id := range export.Members {
					fmt.Printf("  %s\n", id)
				}
				fmt.Printf("relationships (%d):\n", len(export.Relationships))
				for _, rel := range export.Relationships {
					fmt.Printf("  %s --[%s]--> %s\n", rel.FromEntityID, rel.Type, rel.ToEntityID)
				}
				return nil
			},
		},
	},
}
