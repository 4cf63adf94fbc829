package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/johnquangdev/meeting-sync/pkg/config"
	pkgjwt "github.com/johnquangdev/meeting-sync/pkg/jwt"
)

// Prints a bearer token for the operator API:
//
//	go run ./scripts/admintoken -sub ops@example.com -ttl 2h
func main() {
	subject := flag.String("sub", "", "operator the token is issued to")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to ADMIN_TOKEN_EXPIRY)")
	flag.Parse()

	if *subject == "" {
		log.Fatal("-sub is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	expiry := cfg.Admin.TokenExpiry
	if *ttl > 0 {
		expiry = *ttl
	}
	manager := pkgjwt.NewManager(cfg.Admin.JWTSecret, cfg.Admin.Issuer, expiry)
	token, err := manager.Generate(*subject, pkgjwt.RoleAdmin)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	log.Printf("🔑 Token for %s valid until %s", *subject, time.Now().Add(expiry).Format(time.RFC3339))
	fmt.Println(token)
}
