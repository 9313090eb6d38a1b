package main

import (
	"context"
	"log"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/auth"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/config"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/db"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/httpapi"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/store/rabbitmq"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := db.AutoMigrate(gdb); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	deps := httpapi.Deps{}

	// External verification is only needed outside pure HS256 mode, but the
	// login endpoints always want it when Google is configured.
	if cfg.OIDCJWKSURI != "" {
		oidc, err := auth.NewJWKSVerifier(context.Background(), cfg.OIDCIssuer, cfg.OIDCJWKSURI, cfg.OIDCAudience)
		if err != nil {
			log.Printf("[api] jwks verifier disabled: %v", err)
		} else {
			deps.OIDC = oidc
		}
	}

	deps.States = redisstore.NewStateStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer deps.States.Close()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("[api] job queue disabled: %v", err)
	} else {
		deps.Publisher = pub
		defer pub.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, deps)
	log.Printf("[api] listening on %s auth_mode=%s", cfg.ListenAddr, cfg.AuthMode)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
