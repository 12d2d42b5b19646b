package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// NextCronRun computes the next fire time for sched after now. An "at"
// schedule fires once and reports ok=false after it has passed; "every"
// advances by EveryMs anchored to AnchorMs (or now, if unset); "cron"
// evaluates a standard cron expression in the schedule's timezone.
func NextCronRun(sched models.CronSchedule, now time.Time) (next time.Time, ok bool, err error) {
	switch sched.Kind {
	case models.ScheduleAt:
		if sched.AtMs == 0 {
			return time.Time{}, false, fmt.Errorf("at schedule missing timestamp")
		}
		at := time.UnixMilli(sched.AtMs)
		if now.After(at) {
			return time.Time{}, false, nil
		}
		return at, true, nil

	case models.ScheduleEvery:
		if sched.EveryMs <= 0 {
			return time.Time{}, false, fmt.Errorf("every schedule missing interval")
		}
		anchor := sched.AnchorMs
		if anchor == 0 {
			anchor = now.UnixMilli()
		}
		interval := sched.EveryMs
		elapsed := now.UnixMilli() - anchor
		if elapsed < 0 {
			return time.UnixMilli(anchor), true, nil
		}
		periods := elapsed/interval + 1
		return time.UnixMilli(anchor + periods*interval), true, nil

	case models.ScheduleCron:
		if sched.Expr == "" {
			return time.Time{}, false, fmt.Errorf("cron schedule missing expression")
		}
		loc := now.Location()
		if sched.TZ != "" {
			if tz, err := time.LoadLocation(sched.TZ); err == nil {
				loc = tz
			}
		}
		parsed, err := cronParser.Parse(sched.Expr)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("parse cron expression: %w", err)
		}
		next := parsed.Next(now.In(loc))
		return next, !next.IsZero(), nil

	default:
		return time.Time{}, false, fmt.Errorf("unknown schedule kind %q", sched.Kind)
	}
}
