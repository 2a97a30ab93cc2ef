// Command gentoken mints a development token for connecting to the gateway
// without the main backend, e.g.:
//
//	go run ./cmd/gentoken -user 4f9d... -name "Ada" | pbcopy
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/studyhive/studyhive/internal/auth"
)

func main() {
	userID := flag.String("user", "", "user UUID (random if empty)")
	name := flag.String("name", "dev", "display name")
	secret := flag.String("secret", "dev-secret-change-me", "shared JWT secret")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	id := *userID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		fmt.Fprintf(os.Stderr, "invalid user UUID: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	claims := auth.Claims{
		UserID:      id,
		DisplayName: *name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "signing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
