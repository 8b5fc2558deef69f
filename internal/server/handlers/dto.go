package handlers

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/tracelab/opexec/pkg/engine"
	"github.com/tracelab/opexec/pkg/execstore"
	"github.com/tracelab/opexec/pkg/operation"
)

var validate = validator.New()

// operationDTO is one operation in a submission body.
type operationDTO struct {
	Kind    string          `json:"kind" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// executeRequest is the body of both execute endpoints.
type executeRequest struct {
	ExecutionID string `json:"execution_id,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Description string `json:"description,omitempty"`

	RecordSeconds  *int `json:"record_seconds,omitempty"`
	SummarySeconds *int `json:"summary_seconds,omitempty"`
	DetailsSeconds *int `json:"details_seconds,omitempty"`

	Operations []operationDTO `json:"operations" validate:"required,min=1,dive"`
}

func (r *executeRequest) options() engine.Options {
	return engine.Options{
		ExecutionID: r.ExecutionID,
		Owner:       r.Owner,
		Description: r.Description,
		RecordTime:  r.RecordSeconds,
		SummaryTime: r.SummarySeconds,
		DetailsTime: r.DetailsSeconds,
	}
}

// decode resolves the DTO operations into concrete payloads.
func (r *executeRequest) decode(registry *operation.Registry) ([]operation.Operation, error) {
	ops := make([]operation.Operation, 0, len(r.Operations))
	for _, dto := range r.Operations {
		op, err := registry.Decode(operation.Kind(dto.Kind), dto.Payload)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

type executeResponse struct {
	Results []operation.Result `json:"results"`
}

type executeAsyncResponse struct {
	ExecutionID string `json:"execution_id"`
}

type listResponse struct {
	Executions []*execstore.Record `json:"executions"`
}
