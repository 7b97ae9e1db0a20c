// Package main mints development access tokens for exercising the API
// with curl. Tokens use the dev signing key and will NOT verify against a
// production deployment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"meridian/internal/token"
	"meridian/pkg/domain"
)

// Dev signing key - matches config.go when JWT_SIGNING_KEY is not set
const devSigningKey = "dev-secret-key-change-in-production"

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in"`
	Claims    map[string]any    `json:"claims"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	userID := flag.String("user-id", "", "User ID (UUID). Generated if empty.")
	email := flag.String("email", "dev@example.com", "Email claim")
	role := flag.String("role", "user", "Role claim: user, manager or admin")
	ttl := flag.Duration("ttl", token.DefaultTTL, "Token time-to-live")
	key := flag.String("key", devSigningKey, "HS256 signing key")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	uid := domain.NewUserID()
	if *userID != "" {
		parsed, err := domain.ParseUserID(*userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid user-id %q: %v\n", *userID, err)
			os.Exit(1)
		}
		uid = parsed
	}

	svc := token.NewService(*key, "meridian", *ttl)
	raw, expiresAt, err := svc.Issue(context.Background(), uid, *email, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		printJSON(tokenOutput{
			Token:     raw,
			Type:      "access_token",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"user_id": uid.String(),
				"email":   *email,
				"role":    *role,
				"exp":     expiresAt.Unix(),
			},
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		})
		return
	}

	fmt.Println("Access Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("User ID:    %s\n", uid)
	fmt.Printf("Email:      %s\n", *email)
	fmt.Printf("Role:       %s\n", *role)
	fmt.Printf("Expires:    %s (%s)\n", expiresAt.Format(time.RFC3339), *ttl)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(raw)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8000/api/v1/users/me")
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}
