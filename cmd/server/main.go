package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/tunegrab/api"
	"github.com/yourusername/tunegrab/api/handlers"
	"github.com/yourusername/tunegrab/internal/app"
	"github.com/yourusername/tunegrab/internal/infrastructure"
	"github.com/yourusername/tunegrab/pkg/logger"
)

var (
	serverMode = flag.Bool("server-mode", false, "Internal flag: run in server mode (called by daemon)")
	foreground = flag.Bool("foreground", false, "Run in the foreground instead of as a daemon")
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	if !*serverMode && !*foreground {
		startAsDaemon()
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "tunegrab-server: %v\n", err)
		os.Exit(1)
	}
}

// startAsDaemon re-executes the binary detached in server mode
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := []string{"-server-mode"}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}

	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	cmd.SysProcAttr = daemonAttr()

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open /dev/null: %v\n", err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	os.Exit(0)
}

func runServer() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize category logs: %w", err)
	}
	defer multiLog.Close()

	log.Info("Starting tunegrab server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("download_dir", config.Download.Dir),
		zap.String("initial_strategy", config.Bypass.InitialStrategy))

	if err := os.MkdirAll(config.Download.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	binary, err := infrastructure.LocateExtractor(config.Extractor.Binary, config.Extractor.ManagedDir, config.Extractor.SearchPaths)
	if err != nil {
		// downloads fail with a startup failure until the binary is installed
		log.Warn("Extraction tool not found, using configured name", zap.Error(err))
		binary = config.Extractor.Binary
	}

	store, err := infrastructure.NewSQLiteStore(config.Store.DatabasePath, config.Store.CompletedKey)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	metadata := infrastructure.NewJSONMetadataStore(config.Download.Dir, log)
	locator := infrastructure.NewFileLocator(config.Download.Dir, metadata, config.Download.CacheValidity, log)
	runner := infrastructure.NewExecRunner(infrastructure.NewProcessLog(config.Download.LogsDir), log)

	downloadMgr := app.NewDownloadManager(app.DownloadManagerDeps{
		Config:    config,
		Binary:    binary,
		Runner:    runner,
		Parser:    infrastructure.NewYTDLPProgressParser(),
		Selector:  infrastructure.NewBypassSelector(&config.Bypass),
		Locator:   locator,
		Metadata:  metadata,
		Completed: store,
		History:   store,
		Notifier:  infrastructure.NewNotificationService(&config.Notification, log),
		Logger:    log,
	})
	if err := downloadMgr.Load(); err != nil {
		return fmt.Errorf("failed to load completed downloads: %w", err)
	}

	queueMgr := app.NewQueueManager(downloadMgr, store, &config.Download, multiLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := queueMgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start queue manager: %w", err)
	}

	router := api.SetupRouter(api.RouterConfig{
		Queue:       queueMgr,
		Engine:      downloadMgr,
		Logger:      log,
		MultiLogger: multiLog,
		LogsDir:     config.Download.LogsDir,
		Server:      config.Server,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		log.Error("HTTP server failed", zap.Error(err))
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := queueMgr.Stop(); err != nil {
		log.Error("Error stopping queue manager", zap.Error(err))
	}
	downloadMgr.CancelAll()

	log.Info("Server exited")
	return nil
}
