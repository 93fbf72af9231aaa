package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"ticketer/internal/app"
	"ticketer/internal/config"
	"ticketer/internal/logging"
	"ticketer/internal/models"
)

func main() {
	var (
		category = flag.StringP("category", "c", "", "Only show tickets of this category")
		usedOnly = flag.Bool("used", false, "Only show redeemed tickets")
		unused   = flag.Bool("unused", false, "Only show tickets not yet redeemed")
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

	tickets, err := stores.Tickets.List(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to list tickets")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTRY CODE\tHOLDER\tEMAIL\tCATEGORY\tPURCHASED\tSCANNED")

	var shown, redeemed int
	for _, t := range tickets {
		if *category != "" && t.Category != models.TicketCategory(*category) {
			continue
		}
		if (*usedOnly && !t.Used) || (*unused && t.Used) {
			continue
		}

		scanned := "-"
		if t.ScannedAt != nil {
			scanned = t.ScannedAt.Format("2006-01-02 15:04:05")
			redeemed++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.EntryCode, t.HolderName, t.Email, t.Category,
			t.PurchasedAt.Format("2006-01-02 15:04"), scanned)
		shown++
	}
	w.Flush()

	fmt.Printf("\n%d tickets, %d redeemed\n", shown, redeemed)
}
