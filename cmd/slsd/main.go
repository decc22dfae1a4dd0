package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sevlyar/go-daemon"
	"github.com/sirupsen/logrus"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/app"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/config"
)

var (
	configPath = flag.String("c", "", "Path to configuration file (e.g., config.yaml). Defaults to ./config.yaml, ~/.config/sls/config.yaml, /etc/sls/config.yaml")
	logPath    = flag.String("log", "", "Path to log file (optional, defaults to stderr)")
	daemonize  = flag.Bool("d", false, "Detach and run in the background")
)

// setupLogging configures the logrus output destination.
func setupLogging(logFilePath string) (*os.File, error) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if logFilePath == "" {
		logrus.SetOutput(os.Stderr)
		return nil, nil
	}

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
	}

	logrus.SetOutput(file)
	logrus.Infof("Logging to file: %s", logFilePath)
	return file, nil
}

func main() {
	flag.Parse()

	// .env is optional; it carries SLS_AI_API_KEY and friends for dev setups.
	if err := godotenv.Load(); err == nil {
		logrus.Debug("Loaded environment from .env")
	}

	logFile, logErr := setupLogging(*logPath)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Error setting up file logging: %v. Logging to stderr instead.\n", logErr)
		logrus.SetOutput(os.Stderr)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	if *daemonize {
		dctx := &daemon.Context{
			PidFileName: "slsd.pid",
			PidFilePerm: 0644,
			Umask:       027,
		}
		child, err := dctx.Reborn()
		if err != nil {
			logrus.Fatalf("Failed to daemonize: %v", err)
		}
		if child != nil {
			// Parent process: the child carries on.
			return
		}
		defer dctx.Release()
		logrus.Info("Running in daemon mode.")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		logrus.Fatalf("Failed to create application: %v", err)
	}

	if err := application.Run(); err != nil {
		logrus.Fatalf("Application exited with error: %v", err)
	}
}
