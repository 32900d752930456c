package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ssogate.org/internal/account"
	"ssogate.org/internal/config"
	"ssogate.org/internal/httpapi"
	"ssogate.org/internal/obs"
	"ssogate.org/internal/oidc"
	"ssogate.org/internal/session"
	"ssogate.org/internal/sso"
	"ssogate.org/internal/token"
	"ssogate.org/internal/webapp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(cfg.Version)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	store, err := session.NewRedisStore(context.Background(), session.RedisConfig{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}

	gateway, err := oidc.NewGateway(oidc.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		DiscoveryURL: cfg.OIDCDiscoveryURL,
		RedirectURI:  cfg.OIDCRedirectURI,
		Scope:        cfg.OIDCScope,
		ResponseType: cfg.OIDCResponseType,
	}, oidc.WithHTTPClient(&http.Client{Timeout: cfg.ProviderTimeout()}))
	if err != nil {
		log.Fatalf("configure oidc: %v", err)
	}
	// The service must not come up against a provider it cannot complete a
	// login with.
	discoverCtx, cancelDiscover := context.WithTimeout(context.Background(), cfg.ProviderTimeout())
	if err := gateway.Discover(discoverCtx); err != nil {
		cancelDiscover()
		log.Fatalf("oidc discovery: %v", err)
	}
	cancelDiscover()

	directory, err := account.NewDirectory(db, cfg.TenantID, cfg.AccountDefaultRole)
	if err != nil {
		log.Fatalf("configure directory: %v", err)
	}

	issuer, err := token.NewIssuer(cfg.SecretKey,
		token.WithIssuer(cfg.Edition),
		token.WithAccessTTL(cfg.AccessTokenTTL()),
		token.WithRefreshTTL(cfg.RefreshTokenTTL()),
	)
	if err != nil {
		log.Fatalf("configure issuer: %v", err)
	}

	tokens := session.NewTokens(store, session.TokensConfig{
		RefreshTokenPrefix:        cfg.RefreshTokenPrefix,
		AccountRefreshTokenPrefix: cfg.AccountRefreshTokenPrefix,
		TTL:                       cfg.RefreshTokenTTL(),
	})

	ssoSvc := sso.NewService(gateway, directory, issuer, tokens)
	webappSvc := webapp.NewService(store, webapp.NewPGResolver(db))

	api := httpapi.New(httpapi.Options{
		Version:         cfg.Version,
		Edition:         cfg.Edition,
		ConsoleWebURL:   cfg.ConsoleWebURL,
		TenantID:        cfg.TenantID,
		CookieSecure:    cfg.ConsoleSecure(),
		AccessTokenTTL:  cfg.AccessTokenTTL(),
		RefreshTokenTTL: cfg.RefreshTokenTTL(),
	}, httpapi.ReadyProbe{DB: db, Store: store}, ssoSvc, webappSvc, directory, issuer)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting ssogate %s on %s", cfg.Version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
