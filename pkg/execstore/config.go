package execstore

// System defaults for the availability windows, in seconds.
const (
	DefaultRecordTime  = 365 * 24 * 60 * 60 // 1 year
	DefaultSummaryTime = 30 * 24 * 60 * 60  // 30 days
	DefaultDetailsTime = 24 * 60 * 60       // 1 day
)

// Times holds the clamped availability windows of one record, in seconds.
type Times struct {
	Record  int
	Summary int
	Details int
}

// AvailabilityConfig carries the per-facet defaults and maxima used to clamp
// caller-requested availability windows.
type AvailabilityConfig struct {
	RecordDefault  int
	SummaryDefault int
	DetailsDefault int
	RecordMax      int
	SummaryMax     int
	DetailsMax     int
}

// DefaultAvailabilityConfig returns the system configuration: maxima equal to
// the defaults, so anything above the default collapses back onto it.
func DefaultAvailabilityConfig() AvailabilityConfig {
	return AvailabilityConfig{
		RecordDefault:  DefaultRecordTime,
		SummaryDefault: DefaultSummaryTime,
		DetailsDefault: DefaultDetailsTime,
		RecordMax:      DefaultRecordTime,
		SummaryMax:     DefaultSummaryTime,
		DetailsMax:     DefaultDetailsTime,
	}
}

// Resolve clamps the caller-requested windows. A nil request takes the
// default; negative values clamp to zero; values above the maximum fall back
// to the default.
func (c AvailabilityConfig) Resolve(record, summary, details *int) Times {
	return Times{
		Record:  clamp(record, c.RecordDefault, c.RecordMax),
		Summary: clamp(summary, c.SummaryDefault, c.SummaryMax),
		Details: clamp(details, c.DetailsDefault, c.DetailsMax),
	}
}

func clamp(requested *int, def, max int) int {
	if requested == nil {
		return def
	}
	v := *requested
	if v < 0 {
		return 0
	}
	if v > max {
		return def
	}
	return v
}
