package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jllopis/sage/pkg/config"
	"github.com/jllopis/sage/pkg/expert"
	"github.com/jllopis/sage/pkg/llm"
	"github.com/jllopis/sage/pkg/llm/anthropic"
	"github.com/jllopis/sage/pkg/manifest"
	"github.com/jllopis/sage/pkg/planner"
	"github.com/jllopis/sage/pkg/telemetry"
)

const version = "0.1.0"

type globalFlags struct {
	ConfigPath string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		fatal(err)
	}

	switch args[0] {
	case "discover":
		runDiscover(ctx, global, cfg, args[1:])
	case "serve":
		runServe(ctx, cfg, args[1:])
	case "experts":
		runExperts(global, cfg, args[1:])
	case "audit":
		runAudit(ctx, global, cfg, args[1:])
	case "help":
		printUsage()
	case "version":
		fmt.Println(version)
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func runDiscover(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("discover", flag.ContinueOnError)
	outDir := cmd.String("out", cfg.Experts.Dir, "Directory for the expert descriptor")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	rest := cmd.Args()
	if len(rest) > 0 && rest[0] == "--" {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		fatal(errors.New("usage: sage discover [--out dir] -- <command> [args...]"))
	}

	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	provider, err := buildProvider(cfg)
	if err != nil {
		fatal(err)
	}

	opts := []expert.DiscoveryOption{}
	if store := openAuditStore(cfg); store != nil {
		defer store.Close()
		opts = append(opts, expert.WithDiscoveryAudit(store))
	}

	discoverer := expert.NewDiscoverer(expert.DiscoveryConfig{
		Command:    rest[0],
		Args:       rest[1:],
		OutputDir:  *outDir,
		Credential: cfg.Credential(),
	}, buildPlanner(cfg, provider), opts...)

	result, err := discoverer.Run(ctx)
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(map[string]any{
			"path":        result.Path,
			"name":        result.Descriptor.Name,
			"description": result.Descriptor.Description,
			"toolCount":   result.Descriptor.Provenance.ToolCount,
		})
		return
	}
	fmt.Printf("expert %q written to %s (%d tools, %d resources, %d prompts)\n",
		result.Descriptor.Name, result.Path,
		result.Descriptor.Provenance.ToolCount,
		result.Descriptor.Provenance.ResourceCount,
		result.Descriptor.Provenance.PromptCount,
	)
}

func runServe(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal(errors.New("usage: sage serve <descriptor.json>"))
	}

	// The stdio transport owns stdout, so logs go to stderr and stdout
	// telemetry exporters are skipped while serving.
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if cfg.Telemetry.Exporter == "otlp" {
		shutdown, err := telemetry.InitWithConfig("sage", version, telemetry.Config{
			Exporter:     cfg.Telemetry.Exporter,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			fatal(err)
		}
		defer shutdown(context.Background())
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		fatal(err)
	}

	opts := []expert.SessionOption{}
	if store := openAuditStore(cfg); store != nil {
		defer store.Close()
		opts = append(opts, expert.WithAudit(store))
	}
	if metrics, err := telemetry.NewSessionMetrics(); err == nil {
		opts = append(opts, expert.WithMetrics(metrics))
	}

	session, err := expert.NewSession(args[0], cfg.Credential(), buildPlanner(cfg, provider), opts...)
	if err != nil {
		fatal(err)
	}

	if err := session.Serve(ctx); err != nil {
		fatal(err)
	}
}

func runExperts(global globalFlags, cfg *config.Config, args []string) {
	if len(args) == 0 || args[0] != "list" {
		fatal(errors.New("usage: sage experts list"))
	}

	entries, err := os.ReadDir(cfg.Experts.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no experts discovered yet")
			return
		}
		fatal(err)
	}

	type row struct {
		File       string               `json:"file"`
		Descriptor *manifest.Descriptor `json:"descriptor,omitempty"`
		Err        string               `json:"error,omitempty"`
	}
	var rows []row
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := cfg.Experts.Dir + string(os.PathSeparator) + entry.Name()
		descriptor, err := manifest.Load(path)
		r := row{File: entry.Name(), Descriptor: descriptor}
		if err != nil {
			r.Err = err.Error()
			r.Descriptor = nil
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].File < rows[j].File })

	if global.JSON {
		printJSON(rows)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "NAME", "TOOLS", "RESOURCES", "PROMPTS", "DISCOVERED", "FILE")
	for _, r := range rows {
		if r.Err != "" {
			writeRow(writer, "ERROR", "-", "-", "-", "-", r.File+": "+r.Err)
			continue
		}
		writeRow(writer,
			r.Descriptor.Name,
			fmt.Sprintf("%d", r.Descriptor.Provenance.ToolCount),
			fmt.Sprintf("%d", r.Descriptor.Provenance.ResourceCount),
			fmt.Sprintf("%d", r.Descriptor.Provenance.PromptCount),
			r.Descriptor.Provenance.DiscoveredAt.Format(time.RFC3339),
			r.File,
		)
	}
	_ = writer.Flush()
}

func runAudit(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) == 0 || args[0] != "list" {
		fatal(errors.New("usage: sage audit list [--expert name] [--kind kind] [--status status] [--limit n]"))
	}
	cmd := flag.NewFlagSet("audit list", flag.ContinueOnError)
	expertName := cmd.String("expert", "", "Expert name filter")
	kind := cmd.String("kind", "", "Event kind filter (discovery, query)")
	status := cmd.String("status", "", "Status filter (ok, error)")
	limit := cmd.Int("limit", 50, "Maximum events")
	if err := cmd.Parse(args[1:]); err != nil {
		fatal(err)
	}

	store, err := planner.OpenSQLiteAuditStore(cfg.Audit.Path)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	events, err := store.List(ctx, planner.AuditFilter{
		Expert: *expertName,
		Kind:   *kind,
		Status: *status,
		Limit:  *limit,
	})
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(events)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "KIND", "EXPERT", "MODE", "STATUS", "CALLS", "STARTED")
	for _, event := range events {
		writeRow(writer,
			event.Kind,
			event.Expert,
			event.Mode,
			event.Status,
			fmt.Sprintf("%d", event.CallCount),
			event.StartedAt.Format(time.RFC3339),
		)
	}
	_ = writer.Flush()
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LLM.Provider)) {
	case "", "anthropic":
		if cfg.LLM.APIKey == "" {
			return nil, errors.New("llm.api_key is required for the anthropic provider (set SAGE_LLM_API_KEY)")
		}
		opts := []anthropic.Option{}
		if cfg.LLM.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.LLM.Model))
		}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.LLM.BaseURL))
		}
		return anthropic.NewWithAPIKey(cfg.LLM.APIKey, opts...), nil
	case "ollama":
		return llm.NewOllama(cfg.LLM.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func buildPlanner(cfg *config.Config, provider llm.Provider) *planner.Planner {
	opts := []planner.Option{}
	if cfg.LLM.Model != "" {
		opts = append(opts, planner.WithModel(cfg.LLM.Model))
	}
	return planner.New(provider, opts...)
}

func openAuditStore(cfg *config.Config) *planner.SQLiteAuditStore {
	if !cfg.Audit.Enabled {
		return nil
	}
	store, err := planner.OpenSQLiteAuditStore(cfg.Audit.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit store unavailable: %v\n", err)
		return nil
	}
	return store
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		col = strings.TrimSpace(col)
		if col == "" {
			col = "-"
		}
		cols[i] = strings.Join(strings.Fields(col), " ")
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func printUsage() {
	fmt.Print(`sage wraps an MCP tool server as a natural-language expert.

Usage:
  sage [global flags] <command> [args]

Global flags:
  --config <path>   Path to sage.yaml
  --json            JSON output

Commands:
  discover [--out dir] -- <command> [args...]
  serve <descriptor.json>
  experts list
  audit list [--expert name] [--kind kind] [--status status] [--limit n]
  version
`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
