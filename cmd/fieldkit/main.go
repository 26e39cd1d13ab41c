package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/mswcd/fieldkit/internal/api"
	"github.com/mswcd/fieldkit/internal/config"
	"github.com/mswcd/fieldkit/internal/db"
	"github.com/mswcd/fieldkit/internal/fsutil"
	"github.com/mswcd/fieldkit/internal/gps"
	"github.com/mswcd/fieldkit/internal/surveyfile"
	"github.com/mswcd/fieldkit/internal/version"
)

// Empty string flags fall back to the FIELDKIT_* environment.
var (
	listen      = flag.String("listen", "", "Listen address (default $FIELDKIT_LISTEN or :8080)")
	dbPathFlag  = flag.String("db-path", "", "Path to the SQLite database (default $FIELDKIT_DB_PATH or fieldkit.db)")
	gpsPort     = flag.String("gps-port", "", "Serial device of the NMEA GPS receiver (default $FIELDKIT_GPS_PORT)")
	disableGPS  = flag.Bool("disable-gps", false, "Run without a GPS receiver")
	configFile  = flag.String("config", "", "Path to a JSON config file (default $FIELDKIT_CONFIG or "+config.DefaultConfigPath+" when present)")
	dataDir     = flag.String("data-dir", "", "Directory for saved survey and waypoint files (default: the database directory)")
	versionFlag = flag.Bool("version", false, "Print version information and exit")
)

// settings is the resolved process configuration.
type settings struct {
	Listen     string
	DBPath     string
	GPSPort    string
	ConfigPath string
	DataDir    string
}

func pick(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return envValue
}

// resolveSettings merges command line flags over the environment.
func resolveSettings(e config.Env) settings {
	s := settings{
		Listen:     pick(*listen, e.Listen),
		DBPath:     pick(*dbPathFlag, e.DBPath),
		GPSPort:    pick(*gpsPort, e.GPSPort),
		ConfigPath: pick(*configFile, e.Config),
		DataDir:    *dataDir,
	}
	if s.DataDir == "" {
		s.DataDir = filepath.Dir(s.DBPath)
	}
	return s
}

// loadConfig reads the configured file, or the defaults file if it exists,
// or falls back to built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.Load(config.DefaultConfigPath)
	}
	return config.EmptyConfig(), nil
}

// openGPS opens the receiver, or a disabled source when GPS is off or the
// device cannot be opened.
func openGPS(s settings, cfg *config.Config) gps.Source {
	if *disableGPS || s.GPSPort == "" {
		log.Printf("GPS disabled")
		return gps.NewDisabledMux()
	}
	m, err := gps.NewRealMux(s.GPSPort, gps.PortOptions{BaudRate: cfg.GetGPSBaudRate()})
	if err != nil {
		log.Printf("failed to open GPS receiver %s, continuing without GPS: %v", s.GPSPort, err)
		return gps.NewDisabledMux()
	}
	log.Printf("GPS receiver on %s at %d baud", s.GPSPort, cfg.GetGPSBaudRate())
	return m
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String("fieldkit"))
		return
	}

	e, err := config.ParseEnv()
	if err != nil {
		log.Fatalf("failed to read environment: %v", err)
	}
	s := resolveSettings(e)

	if flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], s.DBPath)
		return
	}

	if s.Listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := loadConfig(s.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.NewDB(s.DBPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	src := openGPS(s, cfg)
	defer src.Close()

	tracker := gps.NewTracker(gps.TrackerOptions{
		MinInterval:  cfg.GetGPSMinInterval(),
		MinDistanceM: cfg.GetGPSMinDistanceM(),
		StaleAfter:   cfg.GetGPSStaleAfter(),
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := src.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor GPS port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// feed sentences to the tracker
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tracker.Run(ctx, src); err != nil && err != context.Canceled {
			log.Printf("GPS tracker stopped: %v", err)
		}
		st := tracker.Stats()
		log.Printf("tracker routine terminated: %d sentences, %d fixes, %d published, %d errors",
			st.Sentences, st.Fixes, st.Published, st.Errors)
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes
		database.AttachAdminRoutes(mux)
		src.AttachAdminRoutes(mux)

		files := surveyfile.NewStore(fsutil.OSFileSystem{}, s.DataDir)
		apiMux := api.NewServer(database, tracker, files, cfg).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		server := &http.Server{
			Addr:    s.Listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", s.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
