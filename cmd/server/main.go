package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/score-analyzer/webapp/internal/account"
	"github.com/score-analyzer/webapp/internal/api"
	"github.com/score-analyzer/webapp/internal/config"
	"github.com/score-analyzer/webapp/internal/orchestrator"
	"github.com/score-analyzer/webapp/internal/progress"
	"github.com/score-analyzer/webapp/internal/scoreapi"
	"github.com/score-analyzer/webapp/internal/storage"
	"github.com/score-analyzer/webapp/internal/workspace"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, "ScoreAnalyzer.exe.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Initialize the upload spool
	spool, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Upstream backend client
	client := scoreapi.NewClient(
		cfg.Upstream.BaseURL,
		cfg.Upstream.AuthToken,
		time.Duration(cfg.Upstream.UploadTimeout)*time.Second,
		time.Duration(cfg.Upstream.AnalyzeTimeout)*time.Second,
		time.Duration(cfg.Upstream.ReadTimeout)*time.Second,
	)

	// Account quota state
	acct := account.NewManager(client)

	// Workspace store, restoring a persisted snapshot when enabled. The
	// restored state stays bound to the marker it was saved under; the first
	// request with a different session marker discards it.
	snapshotPath := ""
	if cfg.Storage.EnableSnapshot {
		snapshotPath = cfg.Storage.SnapshotFile
	}
	store := workspace.NewStore(snapshotPath)
	if snapshotPath != "" {
		if restored, err := store.Restore(""); err != nil {
			fmt.Printf("Warning: failed to restore workspace snapshot: %v\n", err)
		} else if restored {
			fmt.Printf("Restored %d work items from snapshot\n", len(store.Items()))
		}
	}

	// Progress curves, optionally tuned from a YAML profile
	profile := progress.DefaultProfile()
	if cfg.Workspace.ProgressProfile != "" {
		profile, err = progress.LoadProfile(cfg.Workspace.ProgressProfile)
		if err != nil {
			fmt.Printf("Failed to load progress profile: %v\n", err)
			os.Exit(1)
		}
	}

	orch := orchestrator.New(client, store, acct, orchestrator.Options{
		AcceptedExtensions: cfg.AcceptedExtensions(),
		Profile:            profile,
		TickInterval:       time.Duration(cfg.Workspace.ProgressTickMillis) * time.Millisecond,
	})

	// Initialize API handler
	h := api.NewHandler(orch, store, spool, acct, client, cfg.Workspace.RecentFilesLimit, Version)

	e := echo.New()

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			// Poll targets would drown the log
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
		LogLevel:          0,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			// Upload, analyze and export block on the upstream backend and
			// carry their own timeouts
			path := c.Request().URL.Path
			return strings.Contains(path, "/upload") ||
				strings.Contains(path, "/resubmit") ||
				strings.Contains(path, "/analyze") ||
				strings.Contains(path, "/export")
		},
		ErrorMessage: "Request timeout - query took too long",
	}))

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, api.SessionMarkerHeader},
		}))
	}

	// API routes
	api.RegisterRoutes(e, h)

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Print startup banner
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Score Analyzer Workspace Server                 ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Backend:   %-46s║\n", cfg.Upstream.BaseURL)
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	e.Logger.Fatal(e.StartServer(s))
}
