package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	ginlogrus "github.com/toorop/gin-logrus"

	"moorhen/config"
	db2 "moorhen/db"
	"moorhen/external"
	"moorhen/persist"
	"moorhen/persist/landing"
	"moorhen/source_tracker"
	"moorhen/stats_collector"
)

var db *sqlx.DB
var dbDetails db2.Details
var statsCollector stats_collector.StatsCollector
var landingEngine *landing.Engine
var sourceTracker *source_tracker.SourceTracker

func main() {
	var wg sync.WaitGroup
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchForShutdown(ctx, cancelFn)
	}()

	cfg, err := config.ReadConfig("config.toml")
	if err != nil {
		panic(err)
	}

	logLevel := log.InfoLevel

	// Both Sentry & Pyroscope are optional and off by default.
	external.InitSentry()
	external.InitPyroscope()

	if cfg.Logging.Debug {
		logLevel = log.DebugLevel
	}
	SetupLogger(logLevel, cfg.Logging.SaveLogs)

	log.Infof("Moorhen starting")

	// Capture connection properties.
	mysqlConfig := mysql.Config{
		User:                 cfg.Database.User,
		Passwd:               cfg.Database.Password,
		Net:                  "tcp",
		Addr:                 cfg.Database.Addr,
		DBName:               cfg.Database.Db,
		AllowNativePasswords: true,
	}

	dbConnectionString := mysqlConfig.FormatDSN()
	driver := "mysql"

	log.Infof("Starting migration")

	m, err := migrate.New(
		"file://sql",
		driver+"://"+dbConnectionString+"&multiStatements=true")
	if err != nil {
		log.Fatal(err)
		return
	}
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		log.Fatal(err)
		return
	}

	log.Infof("Opening database for processing, max pool = %d", cfg.Database.MaxPool)

	db, err = sqlx.Open(driver, dbConnectionString)
	if err != nil {
		log.Fatal(err)
		return
	}

	db.SetConnMaxLifetime(time.Minute * 3) // Recommended by go mysql driver
	db.SetMaxOpenConns(cfg.Database.MaxPool)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(time.Minute)

	pingErr := db.Ping()
	if pingErr != nil {
		log.Fatal(pingErr)
		return
	}
	log.Infoln("Connected to database")

	dbDetails = db2.Details{
		GeneralDb: db,
	}

	// Start the web server.
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// choose the statsCollector we will use.
	statsCollector = stats_collector.GetStatsCollector(cfg, r)

	landingEngine, err = persist.InitLanding(ctx, dbDetails, statsCollector)
	if err != nil {
		log.Fatalf("failed to start landing engine: %s", err)
	}

	sourceTracker = source_tracker.NewSourceTracker(cfg.Landing.SourceTTLHours)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sourceTracker.Run(ctx)
	}()

	if cfg.Logging.Debug {
		r.Use(ginlogrus.Logger(log.StandardLogger()))
	} else {
		r.Use(gin.Recovery())
	}
	r.POST("/ingest", Ingest)
	r.GET("/health", GetHealth)

	apiGroup := r.Group("/api", AuthRequired())
	apiGroup.GET("/landing/status", LandingStatus)
	apiGroup.POST("/landing/mode", SwitchLandingMode)
	apiGroup.POST("/landing/config", ApplyLandingConfig)
	apiGroup.POST("/landing/reapply", ReapplyLandingMode)
	apiGroup.GET("/landing/alert", LandingAlert)
	apiGroup.GET("/landing/dropped", LandingDropped)
	apiGroup.GET("/landing/modes", GetLandingModes)
	apiGroup.POST("/landing/modes/:mode", UpdateLandingMode)

	apiGroup.GET("/sources/all", GetSources)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	wg.Add(1)
	go func() {
		defer cancelFn()
		defer wg.Done()

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Failed to listen and start http server: %s", err)
		}
	}()

	// wait for shutdown to be signaled in some way. This can be from a
	// failure to start the http server, and/or watchForShutdown() saying it
	// is time to shutdown. (watchForShutdown() on unix waits for a SIGINT
	// or SIGTERM)
	<-ctx.Done()

	log.Info("Starting shutdown...")

	// So now we attempt to shutdown the http server, telling it to wait for
	// open requests to finish for 5 seconds before just pulling the plug.
	shutdownCtx, shutdownCancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancelFn()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		if err == context.DeadlineExceeded {
			log.Warn("Graceful shutdown timed out, exiting.")
		} else {
			log.Errorf("Error during http server shutdown: %s", err)
		}
	}

	// wait for other started goroutines to cleanup before the final landing
	// drain writes whatever is still queued.
	log.Info("http server is shutdown, waiting for other go routines to exit...")
	wg.Wait()

	log.Info("go routines have exited, waiting for final landing drain...")
	landingEngine.Stop()

	log.Info("Moorhen exiting!")
}
