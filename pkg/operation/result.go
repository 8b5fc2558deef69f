package operation

import "fmt"

// Result is the outcome of one executed operation. Results are returned to
// the caller in the original submission order regardless of how the batch was
// grouped internally.
type Result struct {
	Kind Kind `json:"kind"`

	// ObjectID is the persistent identifier of the object the operation
	// produced or acted on (the created code for creates).
	ObjectID string `json:"object_id,omitempty"`

	// Message is a short human-readable outcome line, persisted in the
	// execution summary.
	Message string `json:"message,omitempty"`
}

func (r Result) String() string {
	if r.ObjectID == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s %s", r.Kind, r.ObjectID)
}
