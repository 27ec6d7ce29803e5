package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/RealZimboGuy/shipflow/internal/metrics"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/core"
)

const dailyReminderHorizonDays = 3

// Sweeper runs the calendar driven checks that are not tied to a step
// transition: overdue shipments and the daily LFD digest.
type Sweeper struct {
	store    core.Store
	clock    core.Clock
	location *time.Location
	metrics  *metrics.Metrics
}

// OverdueShipment is an in-progress shipment past its last free day.
type OverdueShipment struct {
	ShipmentID  int64
	MAWBNumber  string
	LFD         time.Time
	DaysOverdue int
}

// LFDReminder is an in-progress shipment whose LFD is close.
type LFDReminder struct {
	ShipmentID int64
	MAWBNumber string
	LFD        time.Time
	DaysLeft   int
}

func NewSweeper(store core.Store, clock core.Clock, loc *time.Location, m *metrics.Metrics) *Sweeper {
	if loc == nil {
		loc = time.Local
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &Sweeper{store: store, clock: clock, location: loc, metrics: m}
}

func (s *Sweeper) today() time.Time {
	return LocalMidnight(s.clock.Now(), s.location)
}

// CheckOverdueShipments lists in-progress shipments whose LFD is before today.
func (s *Sweeper) CheckOverdueShipments(ctx context.Context) ([]OverdueShipment, error) {
	now := s.clock.Now()
	shipments, err := s.store.Shipments().FindOverdue(ctx, s.today())
	if err != nil {
		return nil, fmt.Errorf("find overdue shipments: %w", err)
	}
	out := make([]OverdueShipment, 0, len(shipments))
	for _, sh := range shipments {
		o := OverdueShipment{
			ShipmentID:  sh.ID,
			MAWBNumber:  sh.MAWBNumber,
			LFD:         sh.LFD.Time,
			DaysOverdue: -DaysUntil(sh.LFD.Time, now, s.location),
		}
		slog.WarnContext(ctx, "Shipment overdue", "mawb", o.MAWBNumber, "lfd", o.LFD.Format("2006-01-02"), "daysOverdue", o.DaysOverdue)
		out = append(out, o)
	}
	s.metrics.SetOverdueShipments(len(out))
	return out, nil
}

// SendDailyReminders lists in-progress shipments with an LFD between today
// and three days out.
func (s *Sweeper) SendDailyReminders(ctx context.Context) ([]LFDReminder, error) {
	now := s.clock.Now()
	from := s.today()
	to := from.AddDate(0, 0, dailyReminderHorizonDays)
	shipments, err := s.store.Shipments().FindLFDBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("find shipments by lfd: %w", err)
	}
	out := make([]LFDReminder, 0, len(shipments))
	for _, sh := range shipments {
		r := LFDReminder{
			ShipmentID: sh.ID,
			MAWBNumber: sh.MAWBNumber,
			LFD:        sh.LFD.Time,
			DaysLeft:   DaysUntil(sh.LFD.Time, now, s.location),
		}
		slog.InfoContext(ctx, "LFD approaching", "mawb", r.MAWBNumber, "lfd", r.LFD.Format("2006-01-02"), "daysLeft", r.DaysLeft)
		out = append(out, r)
	}
	s.metrics.SetLFDDueShipments(len(out))
	return out, nil
}

// Start schedules both sweeps with cron expressions evaluated in the
// sweeper's location and blocks until ctx is done.
func (s *Sweeper) Start(ctx context.Context, overdueSpec, reminderSpec string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(s.location))
	if _, err := c.AddFunc(overdueSpec, func() {
		if _, err := s.CheckOverdueShipments(ctx); err != nil {
			slog.ErrorContext(ctx, "Overdue check failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("overdue check schedule %q: %w", overdueSpec, err)
	}
	if _, err := c.AddFunc(reminderSpec, func() {
		if _, err := s.SendDailyReminders(ctx); err != nil {
			slog.ErrorContext(ctx, "Daily reminders failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("daily reminder schedule %q: %w", reminderSpec, err)
	}
	c.Start()
	slog.InfoContext(ctx, "Sweeps scheduled", "overdue", overdueSpec, "dailyReminders", reminderSpec)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
