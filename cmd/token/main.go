// Command token prints an identity token for local testing.  Production
// tokens come from the identity service; this signs the same claims with
// JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/resort-reservation/internal/config"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/utils"
)

func main() {
	user := flag.String("user", "", "subject (user id)")
	email := flag.String("email", "", "optional email claim")
	role := flag.String("role", model.RoleUser, "user or admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	config.LoadEnv()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logrus.Fatal("JWT_SECRET is not set")
	}
	if *role != model.RoleUser && *role != model.RoleAdmin {
		logrus.Fatalf("unknown role %q", *role)
	}
	tok, err := utils.NewAccessToken(secret, *user, *email, *role, *ttl)
	if err != nil {
		logrus.Fatal(err)
	}
	fmt.Println(tok.Token)
}
