package metrics

// Metric name constants for the insertion engine's own measurements.
// Kept as constants rather than inlined strings so callers and tests
// can't typo a name the Collector silently starts under.
const (
	MetricInsertions         = "hnsw.insertions"
	MetricInsertionsFailed   = "hnsw.insertions.failed"
	MetricBeamExpansions     = "hnsw.beam.expansions"
	MetricCandidateSetSize   = "hnsw.candidate_set_size"
	MetricReciprocalPrunes   = "hnsw.reciprocal.prunes"
	MetricEntryPointReplaced = "hnsw.entrypoint.replaced"
)

// RecordInsertion increments the insertion counter and, on failure,
// the failure counter.
func (c *Collector) RecordInsertion(ok bool) {
	c.Counter(MetricInsertions, 1)
	if !ok {
		c.Counter(MetricInsertionsFailed, 1)
	}
}

// RecordBeamExpansion counts one frontier-expansion step of beam search
// and records the number of newly-scored candidates it produced.
func (c *Collector) RecordBeamExpansion(newlyScored int) {
	c.Counter(MetricBeamExpansions, 1)
	c.Histogram(MetricCandidateSetSize, float64(newlyScored))
}

// RecordReciprocalPrune counts one reciprocal-link-maintenance pass that
// had to invoke the heuristic selector because the neighbor was already
// at capacity.
func (c *Collector) RecordReciprocalPrune() {
	c.Counter(MetricReciprocalPrunes, 1)
}

// RecordEntryPointReplaced counts a seed descriptor replacement in the
// entry-point registry.
func (c *Collector) RecordEntryPointReplaced() {
	c.Counter(MetricEntryPointReplaced, 1)
}
