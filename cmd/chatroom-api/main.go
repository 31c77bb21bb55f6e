package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/chatroom/internal/chat"
	"github.com/MarcoPoloResearchLab/chatroom/internal/config"
	"github.com/MarcoPoloResearchLab/chatroom/internal/database"
	"github.com/MarcoPoloResearchLab/chatroom/internal/ids"
	"github.com/MarcoPoloResearchLab/chatroom/internal/logging"
	"github.com/MarcoPoloResearchLab/chatroom/internal/markup"
	"github.com/MarcoPoloResearchLab/chatroom/internal/messages"
	"github.com/MarcoPoloResearchLab/chatroom/internal/names"
	"github.com/MarcoPoloResearchLab/chatroom/internal/presence"
	"github.com/MarcoPoloResearchLab/chatroom/internal/server"
	"github.com/MarcoPoloResearchLab/chatroom/internal/uploads"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatroom-api",
		Short: "Real-time group chat server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("names-path", defaults.GetString("names.path"), "File with one display name per line")
	cmd.PersistentFlags().String("uploads-dir", defaults.GetString("uploads.dir"), "Directory for uploaded images")
	cmd.PersistentFlags().Int64("uploads-max-bytes", defaults.GetInt64("uploads.max_bytes"), "Maximum upload size in bytes")
	cmd.PersistentFlags().String("static-dir", defaults.GetString("static.dir"), "Directory with the web client")
	cmd.PersistentFlags().Int("history-limit", defaults.GetInt("history.limit"), "Number of messages returned as history")
	cmd.PersistentFlags().Duration("persistence-timeout", defaults.GetDuration("persistence.timeout"), "Timeout for a single database operation")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "names.path", "names-path")
	bindFlag(cmd, "uploads.dir", "uploads-dir")
	bindFlag(cmd, "uploads.max_bytes", "uploads-max-bytes")
	bindFlag(cmd, "static.dir", "static-dir")
	bindFlag(cmd, "history.limit", "history-limit")
	bindFlag(cmd, "persistence.timeout", "persistence-timeout")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	namePool, err := names.Load(appConfig.NamesPath)
	if err != nil {
		logger.Warn("name pool unavailable; every participant gets a guest name",
			zap.String("path", appConfig.NamesPath),
			zap.Error(err))
		namePool = names.NewPool(nil)
	}
	logger.Info("name pool loaded", zap.Int("names", namePool.Size()))

	store, err := messages.NewStore(messages.StoreConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	hub := server.NewHub(logger)

	pipeline, err := chat.NewPipeline(chat.Dependencies{
		Presence:       presence.NewRegistry(namePool),
		Store:          store,
		Renderer:       markup.NewRenderer(logger),
		Transport:      hub,
		Logger:         logger,
		HistoryLimit:   appConfig.HistoryLimit,
		PersistTimeout: appConfig.PersistenceTimeout,
	})
	if err != nil {
		return err
	}

	uploadService, err := uploads.NewService(uploads.ServiceConfig{
		Directory: appConfig.UploadsDir,
		URLPrefix: server.UploadsRoute,
		MaxBytes:  appConfig.UploadsMaxBytes,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Pipeline:       pipeline,
		Hub:            hub,
		Uploads:        uploadService,
		IDProvider:     ids.NewUUIDProvider(),
		Logger:         logger,
		StaticDir:      appConfig.StaticDir,
		UploadsDir:     appConfig.UploadsDir,
		MaxUploadBytes: appConfig.UploadsMaxBytes,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		// Shutdown does not wait for hijacked websocket connections; CloseAll ends them.
		hub.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
