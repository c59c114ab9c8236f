package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"whats-cooking/internal/analytics"
	"whats-cooking/internal/app"
	"whats-cooking/internal/catalog"
	"whats-cooking/internal/config"
	"whats-cooking/internal/planner"

	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("WHATS_COOKING_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyLogLevel()

	application, err := app.New(ctx, cfg, app.Options{SkipOffline: true})
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer application.Close()

	switch os.Args[1] {
	case "catalog":
		catalogCmd := flag.NewFlagSet("catalog", flag.ExitOnError)
		name := catalogCmd.String("category", "", "Only show this category")
		catalogCmd.Parse(os.Args[2:])

		cats := catalog.All
		if *name != "" {
			cat, err := catalog.ParseCategory(*name)
			if err != nil {
				log.Fatalf("%v", err)
			}
			cats = []catalog.Category{cat}
		}
		for _, cat := range cats {
			printItems(cat, application.Reconciler.MergedItems(ctx, cat))
		}
	case "plans":
		upcoming := application.Plans.Upcoming(application.Today())
		if len(upcoming) == 0 {
			fmt.Println("No upcoming plans.")
			return
		}
		for _, p := range upcoming {
			printDay(p.Date, p.Meals)
		}
	case "reconcile-history":
		report, err := application.Archiver.ReconcileHistory(ctx, application.Now())
		if err != nil {
			log.Errorf("Reconciliation incomplete: %v", err)
		}
		fmt.Printf("Archived %d plan(s) %v, skipped %d, pruned %d history entries.\n",
			len(report.Archived), report.Archived, len(report.Skipped), report.Pruned)
	case "analytics":
		analyticsCmd := flag.NewFlagSet("analytics", flag.ExitOnError)
		from := analyticsCmd.String("from", "", "First date to include (YYYY-MM-DD)")
		to := analyticsCmd.String("to", "", "Last date to include (YYYY-MM-DD)")
		analyticsCmd.Parse(os.Args[2:])

		for _, d := range []string{*from, *to} {
			if d == "" {
				continue
			}
			if err := planner.ValidateDate(d); err != nil {
				log.Fatalf("%v", err)
			}
		}
		history, _, err := application.History.Load(ctx, application.Today())
		if err != nil {
			log.Warnf("History pruning not persisted: %v", err)
		}
		printReport(analytics.Summarize(history, *from, *to))
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", cfg.Metrics.RetentionDays, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		affected, err := application.CleanupMetrics(ctx, *days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printItems(cat catalog.Category, items []catalog.Item) {
	fmt.Printf("%s (%d)\n", cat.Label(), len(items))
	for _, it := range items {
		n := it.Totals()
		fmt.Printf("  - %-30s %4.0f kcal\n", it.Name, n.Calories)
	}
}

func printDay(date string, meals planner.DayPlan) {
	t := planner.Aggregate(meals)
	fmt.Printf("%s  %d kcal, %.1fg protein, %.1fg carbs, %.1fg fat\n", date, t.Calories, t.Protein, t.Carbs, t.Fat)
	for _, cat := range catalog.All {
		for _, it := range meals[cat] {
			fmt.Printf("  [%s] %s\n", cat.Label(), it.Name)
		}
	}
}

func printReport(r analytics.Report) {
	if r.Days == 0 {
		fmt.Println("No archived days in range.")
		return
	}
	fmt.Printf("%d archived day(s) from %s to %s\n", r.Days, r.FirstDate, r.LastDate)
	fmt.Printf("Daily average: %d kcal, %.1fg protein, %.1fg carbs, %.1fg fat\n",
		r.DailyAverage.Calories, r.DailyAverage.Protein, r.DailyAverage.Carbs, r.DailyAverage.Fat)
	fmt.Println("\nMost planned:")
	for _, ic := range r.TopItems {
		fmt.Printf("  %-30s x%d\n", ic.Name, ic.Count)
	}
}

func printUsage() {
	fmt.Println("Usage: whats-cooking <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  catalog [-category name]     Show merged catalogs")
	fmt.Println("  plans                        Show upcoming meal plans")
	fmt.Println("  reconcile-history            Archive past plans and prune history")
	fmt.Println("  analytics [-from] [-to]      Summarize archived days")
	fmt.Println("  metrics-cleanup [-days N]    Remove old fetch metric records")
}
