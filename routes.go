package main

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	gojson "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"moorhen/config"
	"moorhen/persist"
	"moorhen/persist/landing"
	"moorhen/source_tracker"
)

// InboundSnapshot is one entity state posted by game logic. Data holds the
// kind-specific fields.
type InboundSnapshot struct {
	Kind string            `json:"kind"`
	Id   string            `json:"id"`
	Data gojson.RawMessage `json:"data"`
}

// Ingest accepts a batch of entity snapshots from game logic and buffers
// them in the landing queue. Producers only ever see success here; write
// failures are surfaced through counters, logs and the alert hook.
func Ingest(c *gin.Context) {
	r := c.Request

	authHeader := r.Header.Get("Authorization")
	if config.Config.RawBearer != "" {
		if authHeader != "Bearer "+config.Config.RawBearer {
			log.Errorf("Ingest: Incorrect authorisation received (%s)", authHeader)
			c.Status(http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 8*1048576))
	if err != nil {
		log.Errorf("Ingest: Error during HTTP receive %s", err)
		c.Status(http.StatusBadRequest)
		return
	}
	if err := r.Body.Close(); err != nil {
		log.Errorf("Ingest: Error closing body %s", err)
		c.Status(http.StatusBadRequest)
		return
	}

	var snapshots []InboundSnapshot
	if err := gojson.Unmarshal(body, &snapshots); err != nil {
		log.Warnf("Ingest: undecodable payload: %s", err)
		c.Status(http.StatusBadRequest)
		return
	}

	accepted := 0
	for _, snapshot := range snapshots {
		if enqueueSnapshot(snapshot) {
			accepted++
		}
	}

	if sourceId := r.Header.Get("X-Source-Id"); sourceId != "" {
		sourceTracker.Track(sourceId, c.ClientIP(), accepted)
	}

	c.JSON(http.StatusCreated, gin.H{
		"received": len(snapshots),
		"accepted": accepted,
	})
}

func enqueueSnapshot(snapshot InboundSnapshot) bool {
	switch snapshot.Kind {
	case persist.KindPlayer:
		var row persist.PlayerRow
		if err := gojson.Unmarshal(snapshot.Data, &row); err != nil {
			log.Warnf("Ingest: bad player snapshot %s: %s", snapshot.Id, err)
			statsCollector.IncIngest(snapshot.Kind, "error")
			return false
		}
		if row.Id == "" {
			row.Id = snapshot.Id
		}
		if row.Id == "" {
			statsCollector.IncIngest(snapshot.Kind, "error")
			return false
		}
		row.LastSeen = time.Now().Unix()
		persist.EnqueuePlayer(landingEngine, row)
	case persist.KindAlliance:
		var row persist.AllianceRow
		if err := gojson.Unmarshal(snapshot.Data, &row); err != nil {
			log.Warnf("Ingest: bad alliance snapshot %s: %s", snapshot.Id, err)
			statsCollector.IncIngest(snapshot.Kind, "error")
			return false
		}
		if row.Id == "" {
			row.Id = snapshot.Id
		}
		if row.Id == "" {
			statsCollector.IncIngest(snapshot.Kind, "error")
			return false
		}
		persist.EnqueueAlliance(landingEngine, row)
	default:
		log.Warnf("Ingest: unknown entity kind %q", snapshot.Kind)
		statsCollector.IncIngest(snapshot.Kind, "unknown")
		return false
	}

	statsCollector.IncIngest(snapshot.Kind, "ok")
	return true
}

func GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func AuthRequired() gin.HandlerFunc {
	return func(context *gin.Context) {
		if config.Config.ApiSecret != "" {
			authHeader := context.Request.Header.Get("X-Moorhen-Secret")
			if authHeader != config.Config.ApiSecret {
				log.Errorf("Incorrect authorisation received (%s)", authHeader)
				context.String(http.StatusUnauthorized, "Unauthorised")
				context.Abort()
				return
			}
		}
		context.Next()
	}
}

func LandingStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mode":     landingEngine.ActiveMode().String(),
		"summary":  landingEngine.StatusSummary(),
		"counters": landingEngine.Counters(),
		"ingress":  persist.IngressCounts(),
	})
}

type switchModeRequest struct {
	Mode string `json:"mode"`
}

func SwitchLandingMode(c *gin.Context) {
	var requestBody switchModeRequest
	if err := c.BindJSON(&requestBody); err != nil {
		log.Warnf("POST /api/landing/mode Error during post %v", err)
		c.Status(http.StatusBadRequest)
		return
	}

	mode, err := landing.ParseMode(requestBody.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := landingEngine.SwitchToMode(mode); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "ok", "mode": mode.String()})
}

// landingConfigRequest carries partial config edits; omitted fields keep
// their current values.
type landingConfigRequest struct {
	BatchSize        *int  `json:"batch_size"`
	IntervalMs       *int  `json:"interval_ms"`
	Adaptive         *bool `json:"adaptive"`
	BacklogThreshold *int  `json:"backlog_threshold"`
	IdleThreshold    *int  `json:"idle_threshold"`
}

func (r *landingConfigRequest) applyTo(cfg *landing.ModeConfig) {
	if r.BatchSize != nil {
		cfg.BatchSize = *r.BatchSize
	}
	if r.IntervalMs != nil {
		cfg.Interval = time.Duration(*r.IntervalMs) * time.Millisecond
	}
	if r.Adaptive != nil {
		cfg.AdaptiveEnabled = *r.Adaptive
	}
	if r.BacklogThreshold != nil {
		cfg.BacklogThreshold = *r.BacklogThreshold
	}
	if r.IdleThreshold != nil {
		cfg.IdleThreshold = *r.IdleThreshold
	}
}

// ApplyLandingConfig installs a one-off custom config without changing the
// active mode's label.
func ApplyLandingConfig(c *gin.Context) {
	var requestBody landingConfigRequest
	if err := c.BindJSON(&requestBody); err != nil {
		log.Warnf("POST /api/landing/config Error during post %v", err)
		c.Status(http.StatusBadRequest)
		return
	}

	cfg := landingEngine.EffectiveConfig()
	requestBody.applyTo(&cfg)

	if err := landingEngine.ApplyCustomConfig(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "ok"})
}

func ReapplyLandingMode(c *gin.Context) {
	if err := landingEngine.Reapply(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "ok"})
}

func LandingAlert(c *gin.Context) {
	threshold, err := strconv.Atoi(c.DefaultQuery("threshold", "1000"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be an integer"})
		return
	}

	counters := landingEngine.Counters()
	c.JSON(http.StatusOK, gin.H{
		"alert":     landingEngine.NeedAlert(threshold),
		"threshold": threshold,
		"pending":   counters.Pending,
	})
}

func LandingDropped(c *gin.Context) {
	c.JSON(http.StatusOK, persist.Dropped())
}

func modeConfigResponse(cfg landing.ModeConfig) gin.H {
	return gin.H{
		"batch_size":        cfg.BatchSize,
		"interval_ms":       cfg.Interval.Milliseconds(),
		"adaptive":          cfg.AdaptiveEnabled,
		"backlog_threshold": cfg.BacklogThreshold,
		"idle_threshold":    cfg.IdleThreshold,
	}
}

func GetLandingModes(c *gin.Context) {
	out := gin.H{}
	for _, mode := range landing.Modes() {
		cfg, err := landingEngine.Presets().Get(mode)
		if err != nil {
			continue
		}
		out[mode.String()] = modeConfigResponse(cfg)
	}
	c.JSON(http.StatusOK, gin.H{
		"active": landingEngine.ActiveMode().String(),
		"modes":  out,
	})
}

// UpdateLandingMode edits a stored preset. The edit takes effect the next
// time that mode is switched to, or on an explicit reapply if it is the
// active mode.
func UpdateLandingMode(c *gin.Context) {
	mode, err := landing.ParseMode(c.Param("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var requestBody landingConfigRequest
	if err := c.BindJSON(&requestBody); err != nil {
		log.Warnf("POST /api/landing/modes/%s Error during post %v", mode, err)
		c.Status(http.StatusBadRequest)
		return
	}

	cfg, err := landingEngine.Presets().Get(mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	requestBody.applyTo(&cfg)

	if err := landingEngine.Presets().Update(mode, cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "ok", "mode": mode.String()})
}

func GetSources(c *gin.Context) {
	type sourceEntry struct {
		SourceId   string `json:"source_id"`
		RemoteAddr string `json:"remote_addr"`
		LastUpdate int64  `json:"last_update"`
		Snapshots  int64  `json:"snapshots"`
	}

	sources := make([]sourceEntry, 0)
	sourceTracker.IterateSources(func(id string, info source_tracker.SourceInfo) bool {
		sources = append(sources, sourceEntry{
			SourceId:   id,
			RemoteAddr: info.RemoteAddr,
			LastUpdate: info.LastUpdate,
			Snapshots:  info.Snapshots,
		})
		return true
	})

	c.JSON(http.StatusOK, sources)
}
