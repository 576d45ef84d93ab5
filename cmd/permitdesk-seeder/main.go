package main

import (
	"context"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/permitdesk/permitdesk/pkg/config"
	"github.com/permitdesk/permitdesk/pkg/storage"
	"github.com/permitdesk/permitdesk/pkg/workflow"
)

// seedTemplate pairs a workflow template with the permit type it becomes
// the default for.
type seedTemplate struct {
	name        string
	description string
	permitType  string
	steps       []workflow.Step
}

func days(n int) *int { return &n }

// seedTemplates are the stock workflows provisioned for a fresh install.
// Seeding is the only path that produces default templates; templates
// created through the API are always non-default.
var seedTemplates = []seedTemplate{
	{
		name:        "Standard Building Permit",
		description: "Typical sequence for a residential building permit",
		permitType:  "BUILDING",
		steps: []workflow.Step{
			{Title: "Submit application", DueOffsetDays: days(7)},
			{Title: "Plan review", Description: "Municipal plan review", DueOffsetDays: days(30)},
			{Title: "Pay permit fees", DueOffsetDays: days(37)},
			{Title: "Permit issued", DueOffsetDays: days(45)},
			{Title: "Rough inspection", DueOffsetDays: days(90)},
			{Title: "Final inspection", DueOffsetDays: days(180)},
		},
	},
	{
		name:        "Electrical Work",
		description: "Subcode sequence for electrical permits",
		permitType:  "ELECTRICAL",
		steps: []workflow.Step{
			{Title: "Submit application", DueOffsetDays: days(7)},
			{Title: "Permit issued", DueOffsetDays: days(21)},
			{Title: "Rough-in inspection", DueOffsetDays: days(60)},
			{Title: "Final inspection", DueOffsetDays: days(120)},
		},
	},
	{
		name:        "Plumbing Work",
		description: "Subcode sequence for plumbing permits",
		permitType:  "PLUMBING",
		steps: []workflow.Step{
			{Title: "Submit application", DueOffsetDays: days(7)},
			{Title: "Permit issued", DueOffsetDays: days(21)},
			{Title: "Rough-in inspection", DueOffsetDays: days(60)},
			{Title: "Final inspection", DueOffsetDays: days(120)},
		},
	},
	{
		name:        "General Checklist",
		description: "Minimal sequence usable for any permit type",
		steps: []workflow.Step{
			{Title: "Submit application", DueOffsetDays: days(7)},
			{Title: "Permit issued"},
			{Title: "Final inspection"},
		},
	},
}

func main() {
	skipMigrations := flag.Bool("skip-migrations", false, "Do not apply database migrations before seeding")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	ctx := context.Background()
	connections, err := storage.NewConnectionManager(cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer connections.Close()

	db := connections.Primary()
	if !*skipMigrations {
		if err := storage.RunMigrations(ctx, db); err != nil {
			log.WithError(err).Fatal("failed to run migrations")
		}
		log.Info("migrations applied")
	}

	store, err := workflow.NewTemplateStore(db, nil)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize template store")
	}

	created := 0
	for _, seed := range seedTemplates {
		var permitType *string
		if seed.permitType != "" {
			permitType = &seed.permitType
		}

		template, err := store.Create(ctx, seed.name, seed.description, permitType, seed.steps)
		if err != nil {
			// A re-run hits the unique name and skips; anything else aborts.
			log.WithError(err).WithField("template", seed.name).Warn("skipping template")
			continue
		}

		if err := store.SetDefault(ctx, template.ID); err != nil {
			log.WithError(err).WithField("template", seed.name).Error("failed to mark template default")
			os.Exit(1)
		}

		log.WithFields(logrus.Fields{
			"template":    template.Name,
			"permit_type": seed.permitType,
			"steps":       len(template.Steps),
		}).Info("seeded default template")
		created++
	}

	log.WithField("created", created).Info("seeding complete")
}
