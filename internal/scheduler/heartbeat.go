package scheduler

import (
	"strconv"
	"strings"
	"time"

	"github.com/ruizzmauri/gsv-sub000/internal/config"
)

// HeartbeatOKToken is the acknowledgment text a heartbeat prompt expects
// back when there is nothing to report; the reply router strips it before
// delivering (and never delivers it bare).
const HeartbeatOKToken = "HEARTBEAT_OK"

// DefaultHeartbeatPrompt is sent as the user message for a due heartbeat.
const DefaultHeartbeatPrompt = "Read HEARTBEAT.md if it exists (workspace context). Follow it strictly. Do not infer or repeat old tasks from prior chats. If nothing needs attention, reply HEARTBEAT_OK."

// ParseEvery parses a heartbeat.every value ("30m", "1h", "0m"=disabled)
// into a duration; zero or empty means disabled.
func ParseEvery(every string) time.Duration {
	every = strings.TrimSpace(every)
	if every == "" {
		return 0
	}
	d, err := time.ParseDuration(every)
	if err != nil {
		return 0
	}
	return d
}

// NextHeartbeatRun computes the next fire time for an agent's heartbeat
// given its last run and configured interval. Returns ok=false when the
// heartbeat is disabled.
func NextHeartbeatRun(cfg config.HeartbeatConfig, lastRunAt time.Time, now time.Time) (next time.Time, ok bool) {
	interval := ParseEvery(cfg.Every)
	if interval <= 0 {
		return time.Time{}, false
	}
	if lastRunAt.IsZero() {
		return now.Add(interval), true
	}
	next = lastRunAt.Add(interval)
	if next.Before(now) {
		next = now
	}
	return next, true
}

// activeHourMinutes parses "HH:MM" into minutes since midnight; returns
// ok=false on a malformed or empty value.
func activeHourMinutes(value string) (minutes int, ok bool) {
	value = strings.TrimSpace(value)
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// InActiveHours reports whether now (evaluated in the configured timezone,
// falling back to userTimezone then local) falls within [activeFrom,
// activeTo). An unconfigured window means always active. A window that
// wraps midnight (e.g. 22:00..06:00) is handled.
func InActiveHours(cfg config.HeartbeatConfig, userTimezone string, now time.Time) bool {
	fromMin, fromOK := activeHourMinutes(cfg.ActiveFrom)
	toMin, toOK := activeHourMinutes(cfg.ActiveTo)
	if !fromOK || !toOK {
		return true
	}

	tzName := strings.TrimSpace(cfg.Timezone)
	if tzName == "" || tzName == "user" {
		tzName = userTimezone
	}
	loc := now.Location()
	if tzName != "" {
		if tz, err := time.LoadLocation(tzName); err == nil {
			loc = tz
		}
	}
	local := now.In(loc)
	nowMin := local.Hour()*60 + local.Minute()

	if fromMin <= toMin {
		return nowMin >= fromMin && nowMin < toMin
	}
	// Window wraps midnight.
	return nowMin >= fromMin || nowMin < toMin
}

// IsAckOnly reports whether text is empty, or only the heartbeat token
// possibly surrounded by whitespace/punctuation — the reply router never
// delivers these.
func IsAckOnly(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	return strings.EqualFold(strings.Trim(trimmed, ".! \t\n"), HeartbeatOKToken)
}
