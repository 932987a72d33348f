package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/profilevault/profilevault/internal/config"
	"github.com/profilevault/profilevault/internal/engine"
	"github.com/profilevault/profilevault/internal/store"
)

var (
	// Global flags
	cfgPath    string
	backupRoot string
	logLevel   string
	logFormat  string
	quiet      bool
	globalCfg  *config.Config
	logger     *slog.Logger

	// Global components
	globalStore  *store.Store
	globalEngine *engine.Engine
)

// initializeComponents initializes the global store and engine
func initializeComponents() error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	if globalCfg.HistoryDB != "" {
		st, err := store.New(globalCfg.HistoryDB, logger)
		if err != nil {
			// Run history is a convenience; a broken database must not
			// block backups.
			logger.Warn("failed to open history database, continuing without run history", "path", globalCfg.HistoryDB, "error", err)
		} else {
			globalStore = st
		}
	}

	eng, err := engine.New(globalCfg, globalStore, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	globalEngine = eng

	logger.Debug("components initialized", "backup_root", globalCfg.BackupRoot)
	return nil
}

// shouldSkipComponentInit checks if a command should skip component initialization
func shouldSkipComponentInit(cmdName string) bool {
	skipInitCmds := map[string]bool{
		"help":    true,
		"version": true,
	}
	return skipInitCmds[cmdName]
}

// closeStore closes the global store connection
func closeStore() {
	if globalStore != nil {
		if err := globalStore.Close(); err != nil {
			logger.Error("failed to close history database", "error", err)
		}
	}
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profilevault",
		Short: "Backup and restore browser profiles",
		Long: `profilevault backs up browser profile data (bookmarks, history, saved
logins, preferences, cookies, extensions and more) into integrity-hashed
compressed archives, and restores them later into the same browser or a
different one. Bookmarks and history survive restores across the
Chromium/Firefox boundary; everything else is restored only between
compatible browsers.`,
		Example: `  profilevault backup --browser chrome
  profilevault backup --browser firefox --categories bookmarks,history
  profilevault list
  profilevault restore --backup <id>
  profilevault restore --backup <id> --target-browser brave
  profilevault verify <id>
  profilevault export-bookmarks --browser edge --out bookmarks.html`,
		Version: "0.1.0",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize logging
			setupLogging()

			// Skip config loading for commands that don't need it
			if shouldSkipConfig(cmd.Name()) {
				return nil
			}

			// Load config
			if cfgPath == "" {
				var err error
				cfgPath, err = config.FindConfigFile()
				if err != nil {
					logger.Debug("config file not found, using defaults", "error", err)
				}
			}

			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else {
				globalCfg = config.DefaultConfig()
			}

			// Override with command-line flags if provided
			if backupRoot != "" {
				globalCfg.BackupRoot = backupRoot
			}

			if !quiet {
				logger.Debug("config loaded", "path", cfgPath, "backup_root", globalCfg.BackupRoot)
			}

			// Initialize components after config is loaded
			if !shouldSkipComponentInit(cmd.Name()) {
				if err := initializeComponents(); err != nil {
					return fmt.Errorf("failed to initialize components: %w", err)
				}
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeStore()
		},
	}

	// Add persistent flags
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&backupRoot, "backup-root", "", "override backup storage directory")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	// Add subcommands
	cmd.AddCommand(
		newBackupCmd(),
		newRestoreCmd(),
		newListCmd(),
		newVerifyCmd(),
		newDeleteCmd(),
		newExportBookmarksCmd(),
		newBrowsersCmd(),
		newHistoryCmd(),
	)

	return cmd
}

// setupLogging initializes the slog logger based on flags
func setupLogging() {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if quiet {
		level = slog.LevelError
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// shouldSkipConfig checks if a command should skip config loading
func shouldSkipConfig(cmdName string) bool {
	skipConfigCmds := map[string]bool{
		"help":    true,
		"version": true,
	}
	return skipConfigCmds[cmdName]
}
