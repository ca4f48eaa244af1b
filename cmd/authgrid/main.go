package main

import (
	"fmt"
	"log"
	"os"

	"github.com/authgrid/authgrid/internal/apiserver/database"
	"github.com/authgrid/authgrid/internal/apiserver/handler"
	"github.com/authgrid/authgrid/internal/apiserver/middleware"
	"github.com/authgrid/authgrid/internal/auth"
	"github.com/authgrid/authgrid/internal/auth/jwt"
	"github.com/authgrid/authgrid/internal/auth/storage"
	"github.com/authgrid/authgrid/internal/common/config"
	"github.com/authgrid/authgrid/pkg/logger"
	"github.com/authgrid/authgrid/pkg/metrics"
	"github.com/authgrid/authgrid/pkg/version"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of authgrid",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("authgrid version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "authgrid",
		Short: "AuthGrid credential server",
		Long:  `AuthGrid issues and manages OAuth2 client credentials, grants and tokens`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "authgrid.yaml", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	// Load configuration
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", cfgPath, err)
	}

	// Initialize logger
	zapLogger, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	zapLogger.Info("starting authgrid",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	// Initialize user database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	// Initialize credential store
	store, err := storage.NewStore(zapLogger, &cfg.Storage)
	if err != nil {
		zapLogger.Fatal("failed to initialize storage", zap.Error(err))
	}

	// Initialize JWT service for login artifacts
	jwtSvc, err := jwt.NewService(jwt.Config{
		SecretKey: cfg.JWT.SecretKey,
		Duration:  cfg.JWT.Duration,
	})
	if err != nil {
		zapLogger.Fatal("failed to initialize jwt service", zap.Error(err))
	}

	oauth := auth.NewProvider(zapLogger, store, handler.NewDirectory(db), jwtSvc, cfg.OAuth.TokenTTL)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	authHandler := handler.NewAuthHandler(db, oauth, zapLogger)
	oauthHandler := handler.NewOAuthHandler(db, oauth, m, zapLogger)

	r := gin.New()
	r.Use(gin.Recovery())
	if m != nil {
		r.Use(m.Middleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// Configure routes
	r.POST("/api/login", authHandler.HandleLogin)
	r.POST("/api/clients", authHandler.HandleRegisterClient)
	r.POST("/api/users", authHandler.HandleCreateUser)
	r.GET("/api/users", middleware.JWTAuthMiddleware(jwtSvc), authHandler.HandleListUsers)

	r.GET("/authorize", oauthHandler.HandleAuthorize)
	r.POST("/authorize", oauthHandler.HandleAuthorize)
	r.POST("/token", oauthHandler.HandleToken)
	r.POST("/revoke", oauthHandler.HandleRevoke)
	r.GET("/validate", oauthHandler.HandleValidate)

	addr := fmt.Sprintf(":%d", cfg.Port)
	zapLogger.Info("server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		zapLogger.Fatal("server exited", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
