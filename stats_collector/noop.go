package stats_collector

type noopCollector struct{}

var _ StatsCollector = (*noopCollector)(nil)

// NewNoopStatsCollector returns a collector that discards everything.
// Used when prometheus is disabled and throughout the tests.
func NewNoopStatsCollector() StatsCollector {
	return &noopCollector{}
}

func (c *noopCollector) IncIngest(kind, status string)            {}
func (c *noopCollector) IncLandingSquashed(kind string)           {}
func (c *noopCollector) SetLandingQueueDepth(depth float64)       {}
func (c *noopCollector) SetLandingMode(severity float64)          {}
func (c *noopCollector) IncLandingModeSwitches(mode string)       {}
func (c *noopCollector) IncLandingWrites(kind string)             {}
func (c *noopCollector) IncLandingRetries(kind string)            {}
func (c *noopCollector) IncLandingDropped(kind string)            {}
func (c *noopCollector) IncLandingBatches()                       {}
func (c *noopCollector) IncLandingBatchErrors()                   {}
func (c *noopCollector) ObserveLandingBatchSize(size float64)     {}
func (c *noopCollector) ObserveLandingBatchTime(seconds float64)  {}
func (c *noopCollector) ObserveLandingLatency(seconds float64)    {}
func (c *noopCollector) IncDbQuery(query string, err error)       {}
