// Package policy decides whether blocking is active for a page, given a
// settings snapshot. Evaluation is a pure function so agents can re-run it on
// every scan tick without side effects.
package policy

import (
	"strings"
	"time"

	"shortsguard/internal/settings"
)

// Reason explains a decision.
type Reason string

const (
	ReasonGloballyDisabled Reason = "globally-disabled"
	ReasonPlatformDisabled Reason = "platform-disabled"
	ReasonOutsideSchedule  Reason = "outside-schedule"
	ReasonWhitelisted      Reason = "whitelisted"
	ReasonBlocking         Reason = "blocking"
)

// Input carries everything one evaluation needs. FocusActive is informational
// only: focus and pomodoro sessions are surfaced to the UI, they never change
// the blocking decision.
type Input struct {
	Settings    *settings.Settings
	Platform    settings.Platform
	Hostname    string
	URL         string
	Channel     string
	Now         time.Time
	FocusActive bool
}

// Decision is the evaluation outcome. EntryID is set when the reason is
// whitelisted, naming the matching entry for diagnostics.
type Decision struct {
	Active  bool
	Reason  Reason
	EntryID string
}

// Evaluate applies the policy ordering: global disable, platform disable,
// schedule, whitelist, block. The ordering is the tie-break: a whitelist hit
// overrides an active schedule window, an explicit disable overrides
// everything. A nil snapshot fails closed toward no blocking.
func Evaluate(in Input) Decision {
	s := in.Settings
	if s == nil || !s.Enabled {
		return Decision{Reason: ReasonGloballyDisabled}
	}
	if !s.Platforms[in.Platform] {
		return Decision{Reason: ReasonPlatformDisabled}
	}
	if s.Schedule.Enabled && !inSchedule(s.Schedule.Ranges, in.Now) {
		return Decision{Reason: ReasonOutsideSchedule}
	}
	if id, ok := whitelisted(s.Whitelist, in); ok {
		return Decision{Reason: ReasonWhitelisted, EntryID: id}
	}
	return Decision{Active: true, Reason: ReasonBlocking}
}

// inSchedule reports whether now's minute-of-day falls inside any range.
// Ranges are half-open [start, end); end before start wraps through midnight.
// An empty range list never matches.
func inSchedule(ranges []settings.TimeRange, now time.Time) bool {
	minute := now.Hour()*60 + now.Minute()
	for _, r := range ranges {
		start := r.StartHour*60 + r.StartMinute
		end := r.EndHour*60 + r.EndMinute
		if start == end {
			continue
		}
		if start < end {
			if minute >= start && minute < end {
				return true
			}
		} else if minute >= start || minute < end {
			return true
		}
	}
	return false
}

// whitelisted checks entries for this platform. Channel and domain entries
// match exactly, url entries match by prefix. Any single match suffices; the
// first matching entry wins.
func whitelisted(entries []settings.WhitelistEntry, in Input) (string, bool) {
	for _, e := range entries {
		if e.Platform != "" && e.Platform != in.Platform {
			continue
		}
		switch e.Type {
		case settings.WhitelistChannel:
			if in.Channel != "" && e.Value == in.Channel {
				return e.ID, true
			}
		case settings.WhitelistDomain:
			if e.Value != "" && strings.EqualFold(e.Value, in.Hostname) {
				return e.ID, true
			}
		case settings.WhitelistURL:
			if e.Value != "" && strings.HasPrefix(in.URL, e.Value) {
				return e.ID, true
			}
		}
	}
	return "", false
}
