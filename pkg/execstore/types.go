// Package execstore defines the durable execution record tracking
// asynchronous (and optionally synchronous) batch executions, together with
// the three-facet result-availability state machine that governs how long the
// record, its summary and its details remain observable.
package execstore

import "time"

// State is the lifecycle state of an execution record.
//
// NOTE: These values are persisted and are part of the stable contract.
type State string

const (
	StateNew        State = "NEW"
	StateScheduled  State = "SCHEDULED"
	StateInProgress State = "IN_PROGRESS"
	StateFinished   State = "FINISHED"
	StateFailed     State = "FAILED"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateFailed
}

// Next reports whether the record may move from s to n. The lifecycle is a
// one-way chain; both terminal states are reachable from any non-terminal
// state so a submission that fails before scheduling can still be finalized.
func (s State) Next(n State) bool {
	switch n {
	case StateScheduled:
		return s == StateNew
	case StateInProgress:
		return s == StateNew || s == StateScheduled
	case StateFinished, StateFailed:
		return !s.Terminal()
	default:
		return false
	}
}

// Availability is the visibility state of one facet of an execution record.
// Facets only ever move forward: AVAILABLE, then TIME_OUT_PENDING once the
// availability window has elapsed, then TIMED_OUT (content nulled) or, for
// the record facet, deletion of the whole record.
type Availability string

const (
	Available      Availability = "AVAILABLE"
	TimeOutPending Availability = "TIME_OUT_PENDING"
	TimedOut       Availability = "TIMED_OUT"
)

// CanBecome reports whether a is allowed to transition to next. Writing the
// current state again is permitted; moving backwards or skipping the pending
// step is not.
func (a Availability) CanBecome(next Availability) bool {
	if a == next {
		return true
	}
	switch next {
	case TimeOutPending:
		return a == Available
	case TimedOut:
		return a == TimeOutPending
	default:
		return false
	}
}

// FacetKind names one of the three independently-expiring facets.
type FacetKind string

const (
	FacetRecord  FacetKind = "record"
	FacetSummary FacetKind = "summary"
	FacetDetails FacetKind = "details"
)

// Facet is one availability clock: its current state, the configured window
// in seconds, and the wall-clock expiry the sweeper scans by. ExpiresAt stays
// zero until the record is finalized; the clock of a facet only starts when
// the execution reaches a terminal state.
type Facet struct {
	Availability Availability `json:"availability"`
	TimeSeconds  int          `json:"time_seconds"`
	ExpiresAt    time.Time    `json:"expires_at,omitempty"`
}

// started reports whether the facet clock has been started.
func (f *Facet) started() bool { return !f.ExpiresAt.IsZero() }

// Due reports whether the facet's availability window has elapsed.
func (f *Facet) Due(now time.Time) bool {
	return f.started() && !now.Before(f.ExpiresAt)
}

// Summary is the lightweight outcome of an execution: the operation
// descriptions captured at submission, the per-operation result messages, and
// the failure message for FAILED executions.
type Summary struct {
	Operations []string `json:"operations,omitempty"`
	Results    []string `json:"results,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Record is the persistent unit of execution tracking, keyed by execution id.
type Record struct {
	ID          string `json:"execution_id"`
	Owner       string `json:"owner,omitempty"`
	Description string `json:"description,omitempty"`
	State       State  `json:"state"`

	// Summary is nil once the summary facet has timed out.
	Summary *Summary `json:"summary,omitempty"`

	// DetailsRef keys the full per-operation results in the details store;
	// empty once the details facet has timed out.
	DetailsRef string `json:"details_ref,omitempty"`

	RecordFacet  Facet `json:"availability"`
	SummaryFacet Facet `json:"summary_availability"`
	DetailsFacet Facet `json:"details_availability"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Facet returns the named facet clock.
func (r *Record) Facet(kind FacetKind) *Facet {
	switch kind {
	case FacetSummary:
		return &r.SummaryFacet
	case FacetDetails:
		return &r.DetailsFacet
	default:
		return &r.RecordFacet
	}
}

// Clone returns a deep copy, so store reads never hand out aliased state.
func (r *Record) Clone() *Record {
	out := *r
	if r.Summary != nil {
		s := *r.Summary
		s.Operations = append([]string(nil), r.Summary.Operations...)
		s.Results = append([]string(nil), r.Summary.Results...)
		out.Summary = &s
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}

// NewRecord builds a NEW record with all three facets AVAILABLE and their
// clocks stopped. times are the clamped availability windows in seconds.
func NewRecord(id, owner, description string, operations []string, times Times, now time.Time) *Record {
	return &Record{
		ID:           id,
		Owner:        owner,
		Description:  description,
		State:        StateNew,
		Summary:      &Summary{Operations: append([]string(nil), operations...)},
		RecordFacet:  Facet{Availability: Available, TimeSeconds: times.Record},
		SummaryFacet: Facet{Availability: Available, TimeSeconds: times.Summary},
		DetailsFacet: Facet{Availability: Available, TimeSeconds: times.Details},
		CreatedAt:    now.UTC(),
	}
}

// Finalize starts the three facet clocks. A configured window of zero puts
// the facet straight into TIME_OUT_PENDING, matching the contract that a
// zero availability time is expired on arrival.
func (r *Record) Finalize(now time.Time) {
	now = now.UTC()
	for _, kind := range []FacetKind{FacetRecord, FacetSummary, FacetDetails} {
		f := r.Facet(kind)
		f.ExpiresAt = now.Add(time.Duration(f.TimeSeconds) * time.Second)
		if f.TimeSeconds == 0 {
			f.Availability = TimeOutPending
		}
	}
	t := now
	r.FinishedAt = &t
}
