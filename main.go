package main

import (
	"log"

	"github.com/slack-go/slack"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	classifier := NewClassifierClient(cfg)

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)

	// Warm the catalog cache once at startup; the backend being down is
	// not fatal, the scheduler will catch up.
	if result, err := RefreshCatalog(classifier, db); err != nil {
		log.Printf("Initial catalog refresh failed: %v", err)
	} else {
		log.Printf("Initial catalog refresh: %s", FormatRefreshSummary(result))
	}

	StartCatalogScheduler(cfg, classifier, db)

	log.Println("Starting Ticket Classification Bot...")
	if err := StartSlackBot(cfg, db, api, classifier); err != nil {
		log.Fatalf("Slack bot error: %v", err)
	}
}
