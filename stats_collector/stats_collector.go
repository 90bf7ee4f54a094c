package stats_collector

import (
	"github.com/Depado/ginprom"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"moorhen/config"
)

// StatsCollector receives every observable event from the ingest path and
// the landing engine.
type StatsCollector interface {
	IncIngest(kind, status string)
	IncLandingSquashed(kind string)
	SetLandingQueueDepth(depth float64)
	SetLandingMode(severity float64)
	IncLandingModeSwitches(mode string)
	IncLandingWrites(kind string)
	IncLandingRetries(kind string)
	IncLandingDropped(kind string)
	IncLandingBatches()
	IncLandingBatchErrors()
	ObserveLandingBatchSize(size float64)
	ObserveLandingBatchTime(seconds float64)
	ObserveLandingLatency(seconds float64)
	IncDbQuery(query string, err error)
}

type Config interface {
	GetPrometheus() config.Prometheus
}

// GetStatsCollector returns the prometheus collector when enabled in
// config, wiring ginprom into the router, and the noop collector otherwise.
func GetStatsCollector(cfg Config, ginEngine *gin.Engine) StatsCollector {
	promSettings := cfg.GetPrometheus()
	if !promSettings.Enabled {
		return NewNoopStatsCollector()
	}
	log.Infof("Prometheus init")
	if ginEngine != nil {
		p := ginprom.New(
			ginprom.Engine(ginEngine),
			ginprom.Subsystem("gin"),
			ginprom.Path("/metrics"),
			ginprom.Token(promSettings.Token),
			ginprom.BucketSize(promSettings.BucketSize),
		)
		ginEngine.Use(p.Instrument())
	}
	return NewPrometheusCollector()
}
