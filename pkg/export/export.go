// Package export derives external artifacts from a run snapshot:
// HAR archives, CSV tables, a full JSON bundle and a paginated report
// document. Every transform is deterministic over its input.
package export

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/reportoor/pkg/config"
)

// Error is an artifact generation failure.
type Error struct {
	Artifact string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("exporting %s: %v", e.Artifact, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Exporter produces artifacts from run snapshots.
type Exporter struct {
	log     logrus.FieldLogger
	cfg     config.EngineConfig
	version string
}

// New creates an exporter. Version tags generated artifacts with the
// producing build.
func New(log logrus.FieldLogger, cfg config.EngineConfig, version string) *Exporter {
	if version == "" {
		version = "dev"
	}

	return &Exporter{
		log:     log.WithField("component", "export"),
		cfg:     cfg,
		version: version,
	}
}

// sortedKeys returns map keys in sorted order for deterministic
// output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
