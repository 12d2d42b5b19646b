package scheduler

import (
	"testing"
	"time"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

func TestNextCronRunAtSchedulePastIsExhausted(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	_, ok, err := NextCronRun(models.CronSchedule{Kind: models.ScheduleAt, AtMs: past.UnixMilli()}, now)
	if err != nil {
		t.Fatalf("NextCronRun: %v", err)
	}
	if ok {
		t.Fatalf("a past \"at\" schedule must report ok=false (one-shot already fired)")
	}
}

func TestNextCronRunAtScheduleFuturePending(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)

	next, ok, err := NextCronRun(models.CronSchedule{Kind: models.ScheduleAt, AtMs: future.UnixMilli()}, now)
	if err != nil {
		t.Fatalf("NextCronRun: %v", err)
	}
	if !ok || !next.Equal(future) {
		t.Fatalf("next = %v, ok=%v; want %v, true", next, ok, future)
	}
}

func TestNextCronRunEveryAdvancesFromAnchor(t *testing.T) {
	anchor := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := anchor.Add(90 * time.Minute)

	next, ok, err := NextCronRun(models.CronSchedule{
		Kind:     models.ScheduleEvery,
		EveryMs:  int64(30 * time.Minute / time.Millisecond),
		AnchorMs: anchor.UnixMilli(),
	}, now)
	if err != nil {
		t.Fatalf("NextCronRun: %v", err)
	}
	want := anchor.Add(120 * time.Minute)
	if !ok || !next.Equal(want) {
		t.Fatalf("next = %v, ok=%v; want %v, true", next, ok, want)
	}
}

func TestNextCronRunCronExpression(t *testing.T) {
	now := time.Date(2026, 8, 1, 8, 59, 0, 0, time.UTC)
	next, ok, err := NextCronRun(models.CronSchedule{Kind: models.ScheduleCron, Expr: "0 9 * * *", TZ: "UTC"}, now)
	if err != nil {
		t.Fatalf("NextCronRun: %v", err)
	}
	want := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	if !ok || !next.Equal(want) {
		t.Fatalf("next = %v, ok=%v; want %v, true", next, ok, want)
	}
}

func TestNextCronRunUnknownKind(t *testing.T) {
	if _, _, err := NextCronRun(models.CronSchedule{Kind: "bogus"}, time.Now()); err == nil {
		t.Fatalf("expected error for unknown schedule kind")
	}
}
