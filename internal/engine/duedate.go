package engine

import (
	"fmt"
	"time"

	"complyflow/internal/catalog/models"
)

// deriveDueDate computes the next nominal due date for an applicable rule.
// Derivation is closed over the rule's strategy enum: no stored expressions
// are ever evaluated.
//
// The period anchor is the later of the incorporation date and the last filed
// period end for the rule's filing type; the next unfiled period is the first
// period ending strictly after the anchor.
func deriveDueDate(rule *models.ComplianceRule, in *Input) (time.Time, error) {
	anchor := dateOnly(in.IncorporationDate)
	if rule.FilingType != "" {
		if filed, ok := in.LastFiledPeriodEnd(rule.FilingType); ok {
			filed = dateOnly(filed)
			if filed.After(anchor) {
				anchor = filed
			}
		}
	}

	switch rule.DueDate.Strategy {
	case models.StrategyDaysAfterPeriodEnd:
		periodEnd, err := nextPeriodEnd(rule.Frequency, anchor)
		if err != nil {
			return time.Time{}, err
		}
		return periodEnd.AddDate(0, 0, rule.DueDate.OffsetDays), nil

	case models.StrategyFixedDate:
		// Fixed-date rules follow an annual cycle: the obligation for the
		// period ending after the anchor falls due on the next occurrence of
		// the fixed date on or after that period end.
		periodEnd, err := nextPeriodEnd(models.FrequencyAnnual, anchor)
		if err != nil {
			return time.Time{}, err
		}
		due := time.Date(periodEnd.Year(), rule.DueDate.Month, rule.DueDate.Day, 0, 0, 0, 0, time.UTC)
		if due.Before(periodEnd) {
			due = due.AddDate(1, 0, 0)
		}
		return due, nil

	case models.StrategyDaysAfterEvent:
		event, err := eventDate(rule, in)
		if err != nil {
			return time.Time{}, err
		}
		return event.AddDate(0, 0, rule.DueDate.OffsetDays), nil

	case models.StrategyServiceDue:
		event, err := eventDate(rule, in)
		if err != nil {
			return time.Time{}, err
		}
		return event, nil

	default:
		return time.Time{}, fmt.Errorf("unknown due date strategy %q", rule.DueDate.Strategy)
	}
}

// eventDate resolves the anchoring event for event-driven strategies: the
// linked service's due date for EVENT_BASED rules, the incorporation date
// otherwise.
func eventDate(rule *models.ComplianceRule, in *Input) (time.Time, error) {
	if rule.Frequency == models.FrequencyEventBased {
		svc, ok := in.ServiceByKey(rule.ServiceKey)
		if !ok {
			return time.Time{}, fmt.Errorf("service %q not engaged", rule.ServiceKey)
		}
		if svc.DueDate == nil {
			return time.Time{}, errMissingField{field: "service " + rule.ServiceKey + " due date"}
		}
		return dateOnly(*svc.DueDate), nil
	}
	return dateOnly(in.IncorporationDate), nil
}

// nextPeriodEnd returns the first period boundary strictly after the anchor.
// Months and quarters are calendar periods; annual periods follow the Indian
// financial year ending 31 March.
func nextPeriodEnd(freq models.Frequency, anchor time.Time) (time.Time, error) {
	switch freq {
	case models.FrequencyMonthly:
		end := endOfMonth(anchor)
		if !end.After(anchor) {
			end = endOfMonth(anchor.AddDate(0, 1, 0))
		}
		return end, nil

	case models.FrequencyQuarterly:
		end := endOfQuarter(anchor)
		if !end.After(anchor) {
			end = endOfQuarter(end.AddDate(0, 0, 1))
		}
		return end, nil

	case models.FrequencyAnnual:
		end := time.Date(anchor.Year(), time.March, 31, 0, 0, 0, 0, time.UTC)
		if !end.After(anchor) {
			end = end.AddDate(1, 0, 0)
		}
		return end, nil

	case models.FrequencyOneTime, models.FrequencyEventBased:
		return time.Time{}, fmt.Errorf("frequency %s has no period cycle", freq)

	default:
		return time.Time{}, fmt.Errorf("unknown frequency %q", freq)
	}
}

func endOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}

func endOfQuarter(t time.Time) time.Time {
	quarterEndMonth := ((int(t.Month())-1)/3)*3 + 3
	firstOfNext := time.Date(t.Year(), time.Month(quarterEndMonth), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole days from a to b, negative when b precedes a.
func daysBetween(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}
