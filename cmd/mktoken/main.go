package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"chat-relay/auth"
	"chat-relay/domain"
)

// mktoken mints a signed bearer token for manual testing against a
// running server. The secret must match the server's JWT_SECRET.
func main() {
	_ = godotenv.Load()
	secret := flag.String("secret", "", "Signing secret (JWT_SECRET)")
	userID := flag.String("user", "", "User identifier to embed")
	role := flag.String("role", string(domain.RoleUser), "Role to embed (user or admin)")
	duration := flag.Duration("duration", 24*time.Hour, "Token validity window")
	flag.Parse()

	if *secret == "" || *userID == "" {
		log.Fatal("both -secret and -user are required")
	}
	if !domain.Role(*role).Known() {
		log.Fatalf("unknown role %q", *role)
	}

	manager := auth.NewTokenManager(*secret, *duration)
	token, err := manager.Generate(*userID, domain.Role(*role))
	if err != nil {
		log.Fatalf("signing token: %v", err)
	}
	fmt.Println(token)
}
