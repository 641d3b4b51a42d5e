package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/marque-app/marque/internal/auth"
	"github.com/marque-app/marque/internal/config"
	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/store"
)

// marquectl is the operator's side door: it talks to the database
// directly with the same configuration the server reads, so the first
// admin account can exist before the HTTP surface does.
func main() {
	app := &cli.App{
		Name:  "marquectl",
		Usage: "Marque admin tool",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply pending database migrations and exit",
				Action: func(c *cli.Context) error {
					st, _, err := open()
					if err != nil {
						return err
					}
					defer func() { _ = st.Close() }()
					return st.Migrate(c.Context)
				},
			},
			{
				Name:  "user",
				Usage: "Manage accounts",
				Subcommands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Create an account",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "email", Required: true},
							&cli.StringFlag{Name: "name", Usage: "display name (defaults to the email local part)"},
							&cli.StringFlag{Name: "password", Required: true},
							&cli.BoolFlag{Name: "admin", Usage: "grant the admin role"},
						},
						Action: func(c *cli.Context) error {
							st, svc, err := open()
							if err != nil {
								return err
							}
							defer func() { _ = st.Close() }()

							u, err := svc.CreateUser(c.Context, auth.NewUser{
								Email:       c.String("email"),
								DisplayName: c.String("name"),
								Password:    c.String("password"),
								Admin:       c.Bool("admin"),
							})
							if err != nil {
								return err
							}
							fmt.Printf("created user %d (%s), key %s\n", u.ID, u.Email, u.UserKey)
							return nil
						},
					},
					{
						Name:      "promote",
						Usage:     "Grant the admin role to an account",
						ArgsUsage: "<email>",
						Action: func(c *cli.Context) error {
							return setAdmin(c, true)
						},
					},
					{
						Name:      "demote",
						Usage:     "Revoke the admin role from an account",
						ArgsUsage: "<email>",
						Action: func(c *cli.Context) error {
							return setAdmin(c, false)
						},
					},
					{
						Name:      "key-rotate",
						Usage:     "Draw a fresh forwarding key for an account",
						ArgsUsage: "<email>",
						Action: func(c *cli.Context) error {
							email := emailArg(c)
							if email == "" {
								return fmt.Errorf("email argument required")
							}
							st, svc, err := open()
							if err != nil {
								return err
							}
							defer func() { _ = st.Close() }()

							u, err := st.UserByEmail(c.Context, email)
							if err != nil {
								return err
							}
							key, err := svc.RotateUserKey(c.Context, u.ID)
							if err != nil {
								return err
							}
							fmt.Printf("new key for %s: %s\n", email, key)
							return nil
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// emailArg reads the first argument the way accounts are stored:
// trimmed and lowercased.
func emailArg(c *cli.Context) string {
	return strings.ToLower(strings.TrimSpace(c.Args().First()))
}

func setAdmin(c *cli.Context, admin bool) error {
	email := emailArg(c)
	if email == "" {
		return fmt.Errorf("email argument required")
	}
	st, _, err := open()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	u, err := st.UserByEmail(c.Context, email)
	if err != nil {
		return err
	}
	if err := st.SetAdmin(c.Context, u.ID, admin); err != nil {
		return err
	}
	fmt.Printf("user %s admin=%v\n", email, admin)
	return nil
}

// open loads the server configuration and connects to its database.
// Migrations are not applied here; `marquectl migrate` is explicit.
func open() (*store.Store, *auth.Service, error) {
	cfg := config.Load()
	logg := logger.New("error", false)

	st, err := store.Open(cfg.DBDriver, cfg.DBDSN, logg)
	if err != nil {
		return nil, nil, err
	}
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	return st, auth.NewService(st, tokens, cfg.ResetTTL, logg), nil
}
