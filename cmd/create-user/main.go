package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"ticketer/internal/app"
	"ticketer/internal/clock"
	"ticketer/internal/config"
	"ticketer/internal/logging"
	"ticketer/internal/models"
	"ticketer/internal/services"
	"ticketer/internal/utils"
)

// Bootstraps operator accounts; the /users endpoint needs one to exist first.
func main() {
	var (
		username = flag.StringP("username", "u", "", "Operator username")
		password = flag.StringP("password", "p", os.Getenv("OPERATOR_PASSWORD"), "Operator password (defaults to $OPERATOR_PASSWORD)")
		list     = flag.Bool("list", false, "List existing operators instead of creating one")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.IsDevelopment())
	ctx := context.Background()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to store")
	}
	defer stores.Close()

	if err := stores.Prepare(ctx, cfg); err != nil {
		logger.WithError(err).Fatal("Failed to prepare store")
	}

	clk := clock.NewSystem()
	authService := services.NewAuthService(
		stores.Users,
		utils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL, clk),
		clk,
		logger,
	)

	if *list {
		users, err := authService.ListUsers(ctx)
		if err != nil {
			logger.WithError(err).Fatal("Failed to list users")
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tCREATED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Username, u.CreatedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()
		return
	}

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(1)
	}

	user, err := authService.Register(ctx, &models.UserCreateRequest{Username: *username, Password: *password})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEntry) {
			logger.WithField("username", *username).Fatal("User already exists")
		}
		logger.WithError(err).Fatal("Failed to create user")
	}

	fmt.Printf("Operator created successfully!\n")
	fmt.Printf("ID: %s\n", user.ID)
	fmt.Printf("Username: %s\n", user.Username)
}
