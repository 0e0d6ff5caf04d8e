// Command devtoken prints a signed access token for local testing.
//
//	go run ./cmd/devtoken -sub c1 -role CLIENT
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/utils"
)

func main() {
	_ = godotenv.Load()

	sub := flag.String("sub", "", "actor id (token subject)")
	role := flag.String("role", string(model.RoleClient), "CLIENT, RECEPTIONIST, MANAGER, ADMIN or SYSTEM")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logrus.Fatal("JWT_SECRET is not set")
	}
	if *sub == "" {
		logrus.Fatal("-sub is required")
	}
	r := model.Role(strings.ToUpper(*role))
	if !r.Valid() {
		logrus.Fatalf("unknown role %q", *role)
	}

	tok, err := utils.NewAccessToken(secret, *sub, string(r), *ttl)
	if err != nil {
		logrus.WithError(err).Fatal("sign token")
	}
	fmt.Println(tok.Token)
}
