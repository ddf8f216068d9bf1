package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sageerr "github.com/jllopis/sage/pkg/errors"
)

// ConnectionSpec holds what is needed to (re-)spawn the wrapped server.
type ConnectionSpec struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Provenance records when discovery ran and how many capabilities it found.
// The counts are denormalized for fast display and must always equal the
// corresponding manifest sequence lengths.
type Provenance struct {
	DiscoveredAt  time.Time `json:"discoveredAt"`
	ToolCount     int       `json:"toolCount"`
	ResourceCount int       `json:"resourceCount"`
	PromptCount   int       `json:"promptCount"`
}

// Descriptor is the persisted unit of expert configuration. It is created
// once by the discovery engine and read, never mutated, by the coordination
// engine for the lifetime of one serve session.
type Descriptor struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	ConnectionSpec ConnectionSpec `json:"connectionSpec"`
	Guidance       string         `json:"guidance"`
	Capabilities   Manifest       `json:"capabilities"`
	Provenance     Provenance     `json:"provenance"`
}

// NewProvenance builds provenance for a manifest at the given instant.
func NewProvenance(m Manifest, at time.Time) Provenance {
	return Provenance{
		DiscoveredAt:  at.UTC(),
		ToolCount:     len(m.Tools),
		ResourceCount: len(m.Resources),
		PromptCount:   len(m.Prompts),
	}
}

// Validate checks the descriptor schema invariants.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return sageerr.New(sageerr.CodeConfig, "descriptor name is empty", nil)
	}
	if d.ConnectionSpec.Command == "" {
		return sageerr.New(sageerr.CodeConfig, "descriptor connection command is empty", nil)
	}
	if got, want := d.Provenance.ToolCount, len(d.Capabilities.Tools); got != want {
		return countMismatch("tool", got, want)
	}
	if got, want := d.Provenance.ResourceCount, len(d.Capabilities.Resources); got != want {
		return countMismatch("resource", got, want)
	}
	if got, want := d.Provenance.PromptCount, len(d.Capabilities.Prompts); got != want {
		return countMismatch("prompt", got, want)
	}
	seen := make(map[string]struct{}, len(d.Capabilities.Tools))
	for _, tool := range d.Capabilities.Tools {
		if tool.Name == "" {
			return sageerr.New(sageerr.CodeConfig, "descriptor contains a tool without a name", nil)
		}
		if _, dup := seen[tool.Name]; dup {
			return sageerr.New(sageerr.CodeConfig,
				fmt.Sprintf("descriptor contains duplicate tool %q", tool.Name), nil)
		}
		seen[tool.Name] = struct{}{}
	}
	return nil
}

func countMismatch(kind string, got, want int) error {
	return sageerr.New(sageerr.CodeConfig,
		fmt.Sprintf("provenance %s count %d does not match manifest length %d", kind, got, want), nil)
}

// FileName derives the persisted file name from the identity name and the
// discovery instant, guaranteeing uniqueness across repeated discovery runs
// against the same server.
func (d *Descriptor) FileName() string {
	slug := Slug(d.Name)
	if slug == "" {
		slug = "expert"
	}
	return fmt.Sprintf("%s-%s.json", slug, d.Provenance.DiscoveredAt.UTC().Format("20060102-150405"))
}

// Save writes the descriptor into dir and returns the full path.
func (d *Descriptor) Save(dir string) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", sageerr.New(sageerr.CodeConfig, "failed to create experts directory", err)
	}
	payload, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", sageerr.New(sageerr.CodeInternal, "failed to encode descriptor", err)
	}
	path := filepath.Join(dir, d.FileName())
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return "", sageerr.New(sageerr.CodeConfig, "failed to write descriptor", err)
	}
	return path, nil
}

// Load reads and schema-validates a descriptor. A missing file, malformed
// document, or schema-violating document all surface as configuration errors
// naming the underlying cause.
func Load(path string) (*Descriptor, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, sageerr.New(sageerr.CodeConfig, "failed to load expert configuration", err)
	}
	var d Descriptor
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, sageerr.New(sageerr.CodeConfig, "failed to load expert configuration", err)
	}
	if err := d.Validate(); err != nil {
		return nil, sageerr.New(sageerr.CodeConfig, "failed to load expert configuration", err)
	}
	return &d, nil
}
