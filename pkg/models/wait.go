package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Wait expressions defer a step relative to a timestamp carried in the
// trigger data, e.g. "2 days before appointment_date" or
// "3 hours after checkout_at". Units are day, hour, and minute.
//
// A missing or unparsable anchor field degrades to "fire immediately"
// instead of failing the workflow, so one malformed field cannot silently
// swallow every remaining step. Callers are expected to log the degradation.

// ResolveWaitDue computes the due time for the successor of a wait step,
// anchored at now. The returned error is advisory: it is non-nil when the
// wait degraded to immediate firing, and the time is always usable.
func ResolveWaitDue(step *Step, now time.Time, triggerData map[string]any) (time.Time, error) {
	if step.Kind != StepKindWait {
		return now, nil
	}

	if step.WaitExpression != "" {
		due, err := resolveWaitExpression(step.WaitExpression, now, triggerData)
		if err != nil {
			return now, err
		}

		return due, nil
	}

	if step.WaitDuration > 0 {
		return now.Add(step.WaitDuration), nil
	}

	return now, fmt.Errorf("wait step %s has no duration or expression", step.ID)
}

// PlanAdvance resolves where to schedule next when entering the workflow at
// step. Consecutive wait steps are folded into the due time of the first
// non-wait successor, so a wait never becomes a pending action itself.
// Returns nil when the chain terminates. The error is advisory: it reports
// wait degradations, dangling successors and wait cycles, and the plan is
// always usable. A wait chain longer than the campaign's step count can only
// mean a cycle, so the fold terminates the workflow there instead of
// spinning.
func PlanAdvance(campaign *Campaign, step *Step, now time.Time, triggerData map[string]any) (*Step, time.Time, error) {
	due := now

	var advisory error

	for folded := 0; step != nil && step.Kind == StepKindWait; folded++ {
		if folded >= len(campaign.Steps) {
			return nil, due, fmt.Errorf("step %s: wait chain cycles", step.ID)
		}

		next, err := ResolveWaitDue(step, due, triggerData)
		if err != nil && advisory == nil {
			advisory = err
		}

		due = next

		if step.NextStepID == nil {
			return nil, due, advisory
		}

		successor, ok := campaign.StepByID(*step.NextStepID)
		if !ok {
			return nil, due, fmt.Errorf("step %s: successor %s not in campaign", step.ID, *step.NextStepID)
		}

		step = successor
	}

	return step, due, advisory
}

// resolveWaitExpression parses "<n> <unit>[s] <before|after> <field>" and
// offsets the anchor timestamp found at field in the trigger data.
func resolveWaitExpression(expr string, now time.Time, triggerData map[string]any) (time.Time, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(expr)))
	if len(fields) != 4 {
		return now, fmt.Errorf("wait expression %q: want \"<n> <unit> <before|after> <field>\"", expr)
	}

	amount, err := strconv.Atoi(fields[0])
	if err != nil || amount < 0 {
		return now, fmt.Errorf("wait expression %q: bad amount %q", expr, fields[0])
	}

	var unit time.Duration

	switch strings.TrimSuffix(fields[1], "s") {
	case "day":
		unit = 24 * time.Hour
	case "hour":
		unit = time.Hour
	case "minute":
		unit = time.Minute
	default:
		return now, fmt.Errorf("wait expression %q: unknown unit %q", expr, fields[1])
	}

	offset := time.Duration(amount) * unit

	switch fields[2] {
	case "before":
		offset = -offset
	case "after":
	default:
		return now, fmt.Errorf("wait expression %q: want \"before\" or \"after\", got %q", expr, fields[2])
	}

	anchorRaw, found := lookupPath(triggerData, fields[3])
	if !found {
		return now, fmt.Errorf("wait expression %q: field %q not in trigger data", expr, fields[3])
	}

	anchor, err := parseAnchorTime(anchorRaw)
	if err != nil {
		return now, fmt.Errorf("wait expression %q: %w", expr, err)
	}

	due := anchor.Add(offset)
	if due.Before(now) {
		// The anchor is already inside the offset window; fire immediately
		// rather than scheduling in the past.
		return now, nil
	}

	return due, nil
}

var anchorLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseAnchorTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range anchorLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}

		return time.Time{}, fmt.Errorf("cannot parse timestamp %q", v)
	case float64:
		return time.Unix(int64(v), 0).UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot parse %T as timestamp", raw)
	}
}
