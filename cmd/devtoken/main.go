// Command devtoken prints a bearer token for one of the seeded development users.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"example.com/reactivities/internal/auth"
	"example.com/reactivities/internal/config"
)

var seededUsers = map[string]string{
	"bob":  "a3f1c7d2-5b1e-4c3a-9d7e-0b6f8e2a4c11",
	"jane": "b7e2d9a4-6c2f-4d4b-8e8f-1c7a9f3b5d22",
	"tom":  "c9a3e1b6-7d3a-4e5c-9f90-2d8b0a4c6e33",
}

func main() {
	username := flag.String("username", "bob", "username carried in the token")
	userID := flag.String("user-id", "", "subject claim; defaults to the seeded id for -username")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to JWT_TTL")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	id := *userID
	if id == "" {
		var ok bool
		if id, ok = seededUsers[*username]; !ok {
			log.Fatalf("no seeded user %q; pass -user-id", *username)
		}
	}
	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.JWTTTL
	}

	now := time.Now()
	token, err := auth.Issue(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, id, *username, lifetime, now)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "user: %s (%s)\nexpires: %s\n", *username, id, now.Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}
