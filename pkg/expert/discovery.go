package expert

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	sageerr "github.com/jllopis/sage/pkg/errors"
	"github.com/jllopis/sage/pkg/manifest"
	"github.com/jllopis/sage/pkg/planner"
)

// Summarizer is the slice of the planner the discovery engine needs.
type Summarizer interface {
	Summarize(ctx context.Context, m manifest.Manifest) (*planner.Summary, error)
}

// DiscoveryConfig describes one discovery run.
type DiscoveryConfig struct {
	// Command and Args spawn the server to introspect. They are
	// caller-supplied and validated only by attempting the connection.
	Command string
	Args    []string
	// OutputDir receives the persisted descriptor.
	OutputDir string
	// Credential is the planner credential. Discovery fails fast when it is
	// empty, before any connection is attempted.
	Credential string
}

// DiscoveryResult reports where the descriptor landed and its identity.
type DiscoveryResult struct {
	Path       string
	Descriptor *manifest.Descriptor
}

// DiscoveryOption configures a Discoverer.
type DiscoveryOption func(*Discoverer)

// WithDiscoveryDialer overrides how the wrapped server is reached.
func WithDiscoveryDialer(dial Dialer) DiscoveryOption {
	return func(d *Discoverer) {
		d.dial = dial
	}
}

// WithDiscoveryAudit records discovery runs into the given store.
func WithDiscoveryAudit(store planner.AuditStore) DiscoveryOption {
	return func(d *Discoverer) {
		d.audit = store
	}
}

// WithDiscoveryLogger sets the logger.
func WithDiscoveryLogger(logger *slog.Logger) DiscoveryOption {
	return func(d *Discoverer) {
		d.logger = logger
	}
}

// WithDiscoveryClock overrides the time source. Tests pin it.
func WithDiscoveryClock(now func() time.Time) DiscoveryOption {
	return func(d *Discoverer) {
		d.now = now
	}
}

// Discoverer produces a validated expert descriptor from a server's
// connection spec.
type Discoverer struct {
	cfg       DiscoveryConfig
	summarize Summarizer
	dial      Dialer
	audit     planner.AuditStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewDiscoverer creates a discovery engine.
func NewDiscoverer(cfg DiscoveryConfig, summarizer Summarizer, opts ...DiscoveryOption) *Discoverer {
	d := &Discoverer{
		cfg:       cfg,
		summarize: summarizer,
		dial:      StdioDialer,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run performs one discovery pass: connect, enumerate, summarize, persist.
// The server connection is closed exactly once on every exit path.
func (d *Discoverer) Run(ctx context.Context) (*DiscoveryResult, error) {
	started := d.now()
	result, err := d.run(ctx)
	d.recordAudit(ctx, started, result, err)
	return result, err
}

func (d *Discoverer) run(ctx context.Context) (*DiscoveryResult, error) {
	if d.cfg.Credential == "" {
		return nil, sageerr.New(sageerr.CodeConfig, "planner credential missing", nil)
	}

	peer, err := d.dial(d.cfg.Command, d.cfg.Args)
	if err != nil {
		return nil, sageerr.New(sageerr.CodeConnection, "failed to connect to server", err).
			WithContext("command", d.cfg.Command)
	}
	defer peer.Close()

	caps, err := d.enumerate(ctx, peer)
	if err != nil {
		return nil, err
	}

	d.logger.Info("discovery.enumerated",
		slog.Int("tools", len(caps.Tools)),
		slog.Int("resources", len(caps.Resources)),
		slog.Int("prompts", len(caps.Prompts)),
	)

	summary, err := d.summarize.Summarize(ctx, caps)
	if err != nil {
		return nil, err
	}

	descriptor := &manifest.Descriptor{
		Name:        summary.Name,
		Description: summary.Description,
		ConnectionSpec: manifest.ConnectionSpec{
			Command: d.cfg.Command,
			Args:    d.cfg.Args,
		},
		Guidance:     summary.Guidance,
		Capabilities: caps,
		Provenance:   manifest.NewProvenance(caps, d.now()),
	}

	path, err := descriptor.Save(d.cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	d.logger.Info("discovery.persisted",
		slog.String("expert", descriptor.Name),
		slog.String("path", path),
	)

	return &DiscoveryResult{Path: path, Descriptor: descriptor}, nil
}

// enumerate requests the three capability lists. Tools are mandatory; the
// resource and prompt sub-protocols are extensions, so their failures degrade
// to empty sequences instead of aborting discovery.
func (d *Discoverer) enumerate(ctx context.Context, peer Peer) (manifest.Manifest, error) {
	tools, err := peer.ListTools(ctx)
	if err != nil {
		return manifest.Manifest{}, sageerr.New(sageerr.CodeConnection, "failed to enumerate tools", err)
	}

	caps := manifest.Manifest{
		Tools:     manifest.FromMCPTools(tools),
		Resources: []manifest.Resource{},
		Prompts:   []manifest.Prompt{},
	}

	if resources, err := peer.ListResources(ctx); err != nil {
		d.logger.Warn("discovery.resources_unsupported", slog.String("error", err.Error()))
	} else {
		caps.Resources = manifest.FromMCPResources(resources)
	}

	if prompts, err := peer.ListPrompts(ctx); err != nil {
		d.logger.Warn("discovery.prompts_unsupported", slog.String("error", err.Error()))
	} else {
		caps.Prompts = manifest.FromMCPPrompts(prompts)
	}

	return caps, nil
}

func (d *Discoverer) recordAudit(ctx context.Context, started time.Time, result *DiscoveryResult, runErr error) {
	if d.audit == nil {
		return
	}
	event := planner.AuditEvent{
		ID:         uuid.NewString(),
		Kind:       "discovery",
		Status:     "ok",
		StartedAt:  started,
		FinishedAt: d.now(),
	}
	if result != nil && result.Descriptor != nil {
		event.Expert = result.Descriptor.Name
		event.CallCount = len(result.Descriptor.Capabilities.Tools)
	}
	if runErr != nil {
		event.Status = "error"
		event.Error = runErr.Error()
	}
	if err := d.audit.Record(ctx, event); err != nil {
		d.logger.Warn("discovery.audit_failed", slog.String("error", err.Error()))
	}
}
