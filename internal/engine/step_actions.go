package engine

import (
	"time"

	"github.com/RealZimboGuy/shipflow/internal/catalog"
	"github.com/RealZimboGuy/shipflow/internal/notify"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

// ActionContext is what a step action sees while the advance transaction is open.
type ActionContext struct {
	Now      time.Time
	Location *time.Location
	Shipment *domain.Shipment
}

// RunAtFunc computes when a reminder runs. Returning false skips the reminder.
type RunAtFunc func(ac ActionContext) (time.Time, bool)

// StepAction is one side effect of entering a step: either a scheduled job
// (JobType, ReminderType, RunAt) or an immediate notification (Template).
type StepAction struct {
	JobType      string
	ReminderType string
	RunAt        RunAtFunc
	Template     string
}

func (a StepAction) isNotification() bool {
	return a.Template != ""
}

func After(d time.Duration) RunAtFunc {
	return func(ac ActionContext) (time.Time, bool) {
		return ac.Now.Add(d), true
	}
}

// BeforeLFD runs at local midnight days before the shipment's last free day.
// Shipments without an LFD get no reminder.
func BeforeLFD(days int) RunAtFunc {
	return func(ac ActionContext) (time.Time, bool) {
		if ac.Shipment == nil || !ac.Shipment.LFD.Valid {
			return time.Time{}, false
		}
		return LFDReminderTime(ac.Shipment.LFD.Time, days, ac.Now, ac.Location)
	}
}

func AtLocalTime(hour, minute int) RunAtFunc {
	return func(ac ActionContext) (time.Time, bool) {
		return NextLocalTime(ac.Now, ac.Location, hour, minute), true
	}
}

// DefaultStepActions keyed by the step being entered.
func DefaultStepActions() map[string][]StepAction {
	return map[string][]StepAction{
		"T03": {
			{JobType: domain.JobTypePickupReminder, ReminderType: "pickup", RunAt: After(24 * time.Hour)},
		},
		"T05": {
			{Template: notify.TemplatePreAlert},
		},
		"T06": {
			{JobType: domain.JobTypeLFDReminder, ReminderType: "lfd_3_days", RunAt: BeforeLFD(3)},
			{JobType: domain.JobTypeLFDReminder, ReminderType: "lfd_1_day", RunAt: BeforeLFD(1)},
		},
		"T11": {
			{JobType: domain.JobTypeISCReminder, ReminderType: "isc_morning", RunAt: AtLocalTime(9, 0)},
			{JobType: domain.JobTypeISCReminder, ReminderType: "isc_afternoon", RunAt: AtLocalTime(14, 0)},
		},
		"T14": {
			{JobType: domain.JobTypeEmptyReturnReminder, ReminderType: "empty_return", RunAt: After(7 * 24 * time.Hour)},
		},
	}
}

// ValidateStepActions rejects actions keyed by unknown steps and half-filled entries.
func ValidateStepActions(c *catalog.Catalog, actions map[string][]StepAction) error {
	for code, list := range actions {
		if _, err := c.Lookup(code); err != nil {
			return domain.ConfigurationError("step action registered for unknown step %q", code)
		}
		for _, a := range list {
			if a.isNotification() {
				continue
			}
			if a.JobType == "" || a.RunAt == nil {
				return domain.ConfigurationError("step action for %q needs a job type and a run time", code)
			}
		}
	}
	return nil
}
