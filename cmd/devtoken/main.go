// Command devtoken mints an access token signed with JWT_SECRET so the API
// can be exercised locally without the identity provider.
//
//	devtoken -sub user-1 [-role ADMIN] [-ttl 1h]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/wellness-session-booking/internal/utils"
)

func main() {
	sub := flag.String("sub", "", "user id placed in the sub claim")
	role := flag.String("role", "", "optional role claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	tok, err := utils.NewAccessToken(secret, *sub, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mint token:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
