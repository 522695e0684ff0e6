// Package main mints access tokens for operators calling the API
// directly, for example to reach the role-guarded audit trail.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"lotledger/internal/auth"
)

func main() {
	_ = godotenv.Load()

	actor := flag.String("actor", "", "actor id the token identifies (required)")
	name := flag.String("name", "", "display name claim")
	email := flag.String("email", "", "email claim")
	roles := flag.String("roles", "", "comma-separated roles, e.g. auditor,admin")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to the service TTL")
	flag.Parse()

	if *actor == "" {
		fmt.Fprintln(os.Stderr, "-actor is required")
		flag.Usage()
		os.Exit(2)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET not set")
		os.Exit(1)
	}

	cfg := auth.DefaultJWTConfig(secret)
	if *ttl > 0 {
		cfg.AccessTokenTTL = *ttl
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	token, expiresAt, err := auth.NewJWTService(cfg).GenerateAccessToken(*actor, *name, *email, roleList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}
