package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-course-auth"
	"github.com/goliatone/go-course-auth/activitymap"
	"github.com/goliatone/go-course-auth/config"
	"github.com/goliatone/go-course-auth/httpapi"
	"github.com/goliatone/go-course-auth/logger"
	"github.com/goliatone/go-course-auth/persistence"
	"github.com/goliatone/go-course-auth/realtime"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	lgr, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Mode:     cfg.Logger.Mode,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		return err
	}
	defer lgr.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.GetSigningKey() == "" {
		lgr.Error("auth.signing_key is not set, every authentication will fail")
	}

	codec, err := auth.NewTokenCodecFromConfig(cfg)
	if err != nil {
		return err
	}

	client, err := persistence.New(cfg.Database)
	if err != nil {
		return err
	}
	db := client.DB()
	defer db.Close()

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	repo := auth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	activity := activitymap.LogSink(lgr.Named("activity"))

	store := auth.NewUserCredentialStore(repo.Users())
	authnOpts := []auth.AuthenticatorOption{
		auth.WithAuthenticatorLogger(lgr.Named("authn")),
		auth.WithAuthenticatorActivitySink(activity),
	}
	requestAuthn := auth.NewRequestAuthenticator(codec, store, authnOpts...)
	connAuthn := auth.NewConnectionAuthenticator(codec, store, authnOpts...)

	roles := auth.NewRoleTransitionAuthority(repo,
		auth.WithRoleTransitionLogger(lgr.Named("roles")),
		auth.WithRoleTransitionActivitySink(activity),
	)

	accounts := auth.NewAuthenticator(repo.Users(), codec).
		WithLogger(lgr.Named("accounts")).
		WithActivitySink(activity)

	if err := seedAdmin(ctx, cfg, repo.Users(), lgr); err != nil {
		return err
	}

	hub := realtime.NewHub(lgr.Named("realtime"))
	var broadcaster realtime.Broadcaster = hub

	if cfg.Redis.Addr != "" {
		rdb, err := realtime.NewRedisClient(ctx, realtime.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()

		rb := realtime.NewRedisBroadcaster(rdb, hub, cfg.Redis.Channel)
		go func() {
			if err := rb.Run(ctx); err != nil {
				lgr.Error("redis broadcaster stopped", "error", err)
			}
		}()
		broadcaster = rb
	}

	app := httpapi.New(httpapi.Options{
		Controller: httpapi.NewController(accounts, roles,
			httpapi.WithBroadcaster(broadcaster),
			httpapi.WithControllerLogger(lgr.Named("http")),
		),
		Authenticator: requestAuthn,
		Realtime: realtime.NewServer(connAuthn, hub,
			realtime.WithHandshakeTimeout(cfg.Realtime.HandshakeTimeout),
			realtime.WithBaseContext(ctx),
		),
		RealtimePath: cfg.Realtime.Path,
		Health:       db,
		Logger:       lgr.Named("http"),
	})

	errc := make(chan error, 1)
	go func() {
		lgr.Info("listening", "addr", cfg.HTTP.Addr)
		errc <- app.Listen(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	lgr.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}

// seedAdmin creates the configured administrator if it does not exist yet
func seedAdmin(ctx context.Context, cfg *config.Config, users auth.Users, lgr *logger.Logger) error {
	if cfg.Admin.Email == "" {
		return nil
	}

	if _, err := users.GetByIdentifier(ctx, cfg.Admin.Email); err == nil {
		return nil
	} else if !auth.IsNotFound(err) {
		return err
	}

	hash, err := auth.HashPassword(cfg.Admin.Password)
	if err != nil {
		return err
	}

	admin, err := users.Register(ctx, &auth.User{
		Email:        cfg.Admin.Email,
		DisplayName:  cfg.Admin.DisplayName,
		Role:         auth.RoleAdmin.Canonical(),
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}

	lgr.Info("seeded administrator", "user_id", admin.ID.String(), "email", admin.Email)
	return nil
}
