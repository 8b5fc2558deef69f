// Package manifest loads batch manifests: YAML files describing a submission
// (execution id, owner, availability windows) and its operation list. Each
// operation names a registered kind and carries its payload, which is decoded
// through the registry into the concrete operation type.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tracelab/opexec/pkg/engine"
	"github.com/tracelab/opexec/pkg/operation"
)

// Batch is the parsed manifest.
type Batch struct {
	ExecutionID string `yaml:"execution_id"`
	Owner       string `yaml:"owner"`
	Description string `yaml:"description"`

	// Availability windows in seconds; omitted fields take the defaults.
	RecordSeconds  *int `yaml:"record_seconds"`
	SummarySeconds *int `yaml:"summary_seconds"`
	DetailsSeconds *int `yaml:"details_seconds"`

	Operations []Entry `yaml:"operations" validate:"required,min=1,dive"`
}

// Entry is one operation in the manifest.
type Entry struct {
	Kind    string         `yaml:"kind" validate:"required"`
	Payload map[string]any `yaml:"payload"`
}

// Options converts the manifest's submission settings.
func (b *Batch) Options() engine.Options {
	return engine.Options{
		ExecutionID: b.ExecutionID,
		Owner:       b.Owner,
		Description: b.Description,
		RecordTime:  b.RecordSeconds,
		SummaryTime: b.SummarySeconds,
		DetailsTime: b.DetailsSeconds,
	}
}

var validate = validator.New()

// Load parses and validates a manifest file.
func Load(path string) (*Batch, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var batch Batch
	if err := yaml.Unmarshal(b, &batch); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := validate.Struct(&batch); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &batch, nil
}

// Decode turns the manifest entries into concrete operations using the
// registry's payload factories.
func (b *Batch) Decode(registry *operation.Registry) ([]operation.Operation, error) {
	ops := make([]operation.Operation, 0, len(b.Operations))
	for i, entry := range b.Operations {
		payload, err := json.Marshal(entry.Payload)
		if err != nil {
			return nil, fmt.Errorf("operation %d: encode payload: %w", i, err)
		}
		op, err := registry.Decode(operation.Kind(entry.Kind), payload)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
