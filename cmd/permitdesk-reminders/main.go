package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/permitdesk/permitdesk/pkg/config"
	"github.com/permitdesk/permitdesk/pkg/notifications"
	"github.com/permitdesk/permitdesk/pkg/storage"
)

// dueMilestone is one incomplete milestone approaching its due date
type dueMilestone struct {
	milestoneID int64
	permitID    int64
	title       string
	dueDate     time.Time
	creatorID   int64
}

func main() {
	runOnce := flag.Bool("run-once", false, "Scan once and exit instead of running on a schedule")
	schedule := flag.String("schedule", "0 8 * * *", "Cron schedule for the reminder scan")
	lookahead := flag.Duration("lookahead", 72*time.Hour, "How far ahead of the due date to remind")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	connections, err := storage.NewConnectionManager(cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer connections.Close()
	db := connections.Primary()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	senders := []notifications.Sender{notifications.NewLogSender(log)}
	dispatcher := notifications.NewDispatcher(ctx, notifications.DispatcherConfig{
		Workers:     cfg.Notifications.Workers,
		QueueSize:   cfg.Notifications.QueueSize,
		SendTimeout: cfg.Notifications.SendTimeout,
	}, senders, log, nil)
	defer dispatcher.Shutdown(30 * time.Second)

	scan := func() {
		count, err := remindDueMilestones(ctx, db, dispatcher, *lookahead, log)
		if err != nil {
			log.WithError(err).Error("reminder scan failed")
			return
		}
		log.WithField("reminders", count).Info("reminder scan complete")
	}

	if *runOnce {
		scan()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, scan); err != nil {
		log.WithError(err).Fatal("invalid cron schedule")
	}
	c.Start()
	log.WithField("schedule", *schedule).Info("reminder scheduler started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	cronCtx := c.Stop()
	<-cronCtx.Done()
}

// remindDueMilestones finds incomplete milestones due within the lookahead
// window and enqueues one reminder per milestone, addressed to the permit's
// creator and every party.
func remindDueMilestones(ctx context.Context, db *sql.DB, dispatcher *notifications.Dispatcher, lookahead time.Duration, log *logrus.Logger) (int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT m.id, m.permit_id, m.title, m.due_date, p.creator_id
		FROM milestones m
		JOIN permits p ON p.id = m.permit_id
		WHERE m.completed_at IS NULL
		  AND m.due_date IS NOT NULL
		  AND m.due_date <= NOW() + $1 * INTERVAL '1 second'
		ORDER BY m.due_date ASC`,
		int64(lookahead.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to query due milestones: %w", err)
	}
	defer rows.Close()

	var due []dueMilestone
	for rows.Next() {
		var m dueMilestone
		if err := rows.Scan(&m.milestoneID, &m.permitID, &m.title, &m.dueDate, &m.creatorID); err != nil {
			return 0, fmt.Errorf("failed to scan milestone: %w", err)
		}
		due = append(due, m)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating milestones: %w", err)
	}

	sent := 0
	for _, m := range due {
		recipients, err := permitRecipients(ctx, db, m.permitID, m.creatorID)
		if err != nil {
			log.WithError(err).WithField("permit_id", m.permitID).Warn("skipping reminder")
			continue
		}

		ok := dispatcher.Enqueue(notifications.Notification{
			Kind:       notifications.KindMilestoneDue,
			PermitID:   m.permitID,
			EntityID:   m.milestoneID,
			Recipients: recipients,
			Message:    fmt.Sprintf("%q is due %s", m.title, m.dueDate.Format("2006-01-02")),
		})
		if ok {
			sent++
		}
	}

	return sent, nil
}

// permitRecipients is the permit's creator plus every party, deduplicated
func permitRecipients(ctx context.Context, db *sql.DB, permitID, creatorID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT user_id FROM permit_parties WHERE permit_id = $1", permitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parties: %w", err)
	}
	defer rows.Close()

	seen := map[int64]bool{creatorID: true}
	recipients := []int64{creatorID}
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan party: %w", err)
		}
		if !seen[userID] {
			seen[userID] = true
			recipients = append(recipients, userID)
		}
	}
	return recipients, rows.Err()
}
