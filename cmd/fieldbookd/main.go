package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kashiralabs/fieldbook/internal/httpserver"
	"github.com/kashiralabs/fieldbook/internal/midtrans"
	"github.com/kashiralabs/fieldbook/internal/store/gormstore"
	"github.com/kashiralabs/fieldbook/pkg/booking"
)

const (
	flagDatabaseURL        = "database-url"
	flagListenAddr         = "listen-addr"
	flagMidtransServerKey  = "midtrans-server-key"
	flagMidtransProduction = "midtrans-production"
	flagRedisAddr          = "redis-addr"
	flagAuthSigningKey     = "auth-signing-key"
	flagAllowedOrigins     = "allowed-origins"

	configKeyDatabaseURL        = "database_url"
	configKeyListenAddr         = "listen_addr"
	configKeyMidtransServerKey  = "midtrans_server_key"
	configKeyMidtransProduction = "midtrans_production"
	configKeyRedisAddr          = "redis_addr"
	configKeyAuthSigningKey     = "auth_signing_key"
	configKeyAllowedOrigins     = "allowed_origins"

	defaultDatabaseURL = "sqlite:///tmp/fieldbook.db"
	defaultListenAddr  = ":8080"
)

type runtimeConfig struct {
	DatabaseURL        string
	ListenAddr         string
	MidtransServerKey  string
	MidtransProduction bool
	RedisAddr          string
	AuthSigningKey     string
	AllowedOrigins     []string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fieldbookd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "fieldbookd",
		Short:         "Sports field booking HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL connection string or sqlite path")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagMidtransServerKey, "", "Midtrans server key")
	cmd.Flags().Bool(flagMidtransProduction, false, "Use the Midtrans production endpoint")
	cmd.Flags().String(flagRedisAddr, "", "Redis address for the slot cache (empty disables caching)")
	cmd.Flags().String(flagAuthSigningKey, "", "HMAC signing key for admin bearer tokens")
	cmd.Flags().StringSlice(flagAllowedOrigins, nil, "CORS allowed origins")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL:        "DATABASE_URL",
		configKeyListenAddr:         "LISTEN_ADDR",
		configKeyMidtransServerKey:  "MIDTRANS_SERVER_KEY",
		configKeyMidtransProduction: "MIDTRANS_PRODUCTION",
		configKeyRedisAddr:          "REDIS_ADDR",
		configKeyAuthSigningKey:     "AUTH_SIGNING_KEY",
		configKeyAllowedOrigins:     "ALLOWED_ORIGINS",
	}
	for configKey, envName := range bindings {
		if err := viper.BindEnv(configKey, envName); err != nil {
			return err
		}
	}

	flagsByKey := map[string]string{
		configKeyDatabaseURL:        flagDatabaseURL,
		configKeyListenAddr:         flagListenAddr,
		configKeyMidtransServerKey:  flagMidtransServerKey,
		configKeyMidtransProduction: flagMidtransProduction,
		configKeyRedisAddr:          flagRedisAddr,
		configKeyAuthSigningKey:     flagAuthSigningKey,
		configKeyAllowedOrigins:     flagAllowedOrigins,
	}
	for configKey, flagName := range flagsByKey {
		if err := viper.BindPFlag(configKey, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.MidtransServerKey = viper.GetString(configKeyMidtransServerKey)
	cfg.MidtransProduction = viper.GetBool(configKeyMidtransProduction)
	cfg.RedisAddr = viper.GetString(configKeyRedisAddr)
	cfg.AuthSigningKey = viper.GetString(configKeyAuthSigningKey)
	cfg.AllowedOrigins = viper.GetStringSlice(configKeyAllowedOrigins)

	if cfg.MidtransServerKey == "" {
		return fmt.Errorf("midtrans server key is required")
	}
	if cfg.AuthSigningKey == "" {
		return fmt.Errorf("auth signing key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, _, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	if err := gormDB.AutoMigrate(gormstore.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	gateway, err := midtrans.NewClient(midtrans.Config{
		ServerKey:  cfg.MidtransServerKey,
		Production: cfg.MidtransProduction,
	})
	if err != nil {
		return fmt.Errorf("midtrans client init: %w", err)
	}

	store := gormstore.New(gormDB)
	clock := func() time.Time { return time.Now().UTC() }
	service, err := booking.NewService(store, gateway, gateway, clock,
		booking.WithOperationLogger(newOperationLogger(logger)))
	if err != nil {
		return fmt.Errorf("booking service init: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = redisClient.Close() }()
	}

	server, err := httpserver.New(httpserver.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		AuthSigningKey: cfg.AuthSigningKey,
	}, service, logger, redisClient)
	if err != nil {
		return fmt.Errorf("http server init: %w", err)
	}
	return server.Run(ctx)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormCfg := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormCfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "fieldbook.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
