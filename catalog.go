package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CatalogRefreshResult tracks what one refresh run actually updated.
type CatalogRefreshResult struct {
	WorkTypes int
	Agents    int
	Errors    []string
}

// RefreshCatalog pulls the work-type catalog and agent metadata from the
// backend into the sqlite cache. It has no Slack dependency so it can be
// called from both the slash command and the scheduler. A partial
// failure (one endpoint down) still commits the other half.
func RefreshCatalog(client *ClassifierClient, db *sql.DB) (CatalogRefreshResult, error) {
	var result CatalogRefreshResult

	types, err := client.GetWorkTypes()
	if err != nil {
		log.Printf("catalog refresh work-types error: %v", err)
		result.Errors = append(result.Errors, fmt.Sprintf("work-types: %v", err))
	} else {
		n, dbErr := UpsertWorkTypes(db, types)
		if dbErr != nil {
			log.Printf("catalog refresh work-types store error: %v", dbErr)
			result.Errors = append(result.Errors, fmt.Sprintf("work-types store: %v", dbErr))
		} else {
			result.WorkTypes = n
		}
	}

	agents, err := client.GetAgents()
	if err != nil {
		log.Printf("catalog refresh agents error: %v", err)
		result.Errors = append(result.Errors, fmt.Sprintf("agents: %v", err))
	} else {
		n, dbErr := UpsertAgents(db, agents)
		if dbErr != nil {
			log.Printf("catalog refresh agents store error: %v", dbErr)
			result.Errors = append(result.Errors, fmt.Sprintf("agents store: %v", dbErr))
		} else {
			result.Agents = n
		}
	}

	if result.WorkTypes == 0 && result.Agents == 0 && len(result.Errors) > 0 {
		return result, fmt.Errorf("catalog refresh failed: %s", strings.Join(result.Errors, "; "))
	}

	if err := SetCatalogRefreshedAt(db, time.Now()); err != nil {
		log.Printf("catalog refresh meta store error: %v", err)
	}
	return result, nil
}

func FormatRefreshSummary(result CatalogRefreshResult) string {
	summary := fmt.Sprintf("типов работ: %d, агентов: %d", result.WorkTypes, result.Agents)
	if len(result.Errors) > 0 {
		summary += fmt.Sprintf(", ошибок: %d (%s)", len(result.Errors), strings.Join(result.Errors, "; "))
	}
	return summary
}

// StartCatalogScheduler refreshes the catalog cache on the configured
// cron schedule. Supports standard 5-field expressions and descriptors
// like "@every 6h". An empty schedule disables the scheduler.
func StartCatalogScheduler(cfg Config, client *ClassifierClient, db *sql.DB) {
	schedule := strings.TrimSpace(cfg.CatalogRefreshSchedule)
	if schedule == "" || strings.EqualFold(schedule, "off") {
		log.Println("Catalog refresh disabled (catalog_refresh_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid catalog_refresh_schedule '%s': %v — catalog refresh disabled", schedule, err)
		return
	}

	log.Printf("Catalog refresh scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next catalog refresh at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			result, refreshErr := RefreshCatalog(client, db)
			if refreshErr != nil {
				log.Printf("Catalog refresh error: %v", refreshErr)
				continue
			}
			log.Printf("Catalog refresh complete: %s", FormatRefreshSummary(result))
		}
	}()
}
