package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"ticketer/internal/app"
	"ticketer/internal/clock"
	"ticketer/internal/config"
	"ticketer/internal/logging"
	"ticketer/internal/models"
	"ticketer/internal/services"
)

// Redeems a ticket by entry code when the door scanner is unavailable.
func main() {
	var (
		code     = flag.StringP("code", "c", "", "Entry code printed under the QR image")
		image    = flag.StringP("image", "i", "", "Photo or PNG of the QR code instead of --code")
		category = flag.String("category", "", "Category read from the ticket, compared with the stored one")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.IsDevelopment())

	if *code == "" && *image == "" {
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to store")
	}
	defer stores.Close()

	cutoffs, err := services.NewCutoffPolicy(cfg.Tickets.Cutoffs, cfg.Tickets.Timezone)
	if err != nil {
		logger.WithError(err).Fatal("Invalid ticket cutoffs")
	}

	ticketService := services.NewTicketService(stores.Tickets, services.NewQRCodeService(), nil, nil, cutoffs, clock.NewSystem(), logger)

	var result *models.RedemptionResult
	if *image != "" {
		data, readErr := os.ReadFile(*image)
		if readErr != nil {
			logger.WithError(readErr).Fatal("Failed to read image")
		}
		result, err = ticketService.RedeemScan(ctx, data)
	} else {
		result, err = ticketService.RedeemTicket(ctx, *code, models.TicketCategory(*category))
	}
	if err != nil {
		logger.WithError(err).Fatal("Redemption failed")
	}

	if err := result.Outcome.Err(); err != nil {
		fields := logrus.Fields{"outcome": result.Outcome.String()}
		if result.Ticket != nil {
			fields["holder_name"] = result.Ticket.HolderName
			fields["category"] = result.Ticket.Category
		}
		logger.WithError(err).WithFields(fields).Fatal("Ticket rejected")
	}

	fmt.Printf("Ticket redeemed: %s (%s) at %s\n",
		result.Ticket.HolderName, result.Ticket.Category, result.Ticket.ScannedAt.Format("2006-01-02 15:04:05"))
}
