// Command devtoken prints a bearer token the reference backend accepts, for
// use with the client's login command during development.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/buildlog/internal/auth"
	"github.com/dmitrijs2005/buildlog/internal/server/config"
)

func main() {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	fs := flag.NewFlagSet("devtoken", flag.ExitOnError)
	userID := fs.String("u", "", "user id to issue the token for")
	secret := fs.String("k", cfg.SecretKey, "signing key (must match the server)")
	validity := fs.Duration("v", cfg.TokenValidity, "token validity")
	_ = fs.Parse(os.Args[1:])

	if *userID == "" {
		fs.Usage()
		os.Exit(2)
	}

	tok, err := auth.GenerateToken(*userID, []byte(*secret), *validity)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(tok)
}
