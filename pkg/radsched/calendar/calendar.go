// Package calendar projects a weekly template onto a concrete calendar
// range, producing the finite, ordered sequence of slot instances the rest
// of the scheduler core reasons about.
package calendar

import (
	"sort"
	"time"

	"github.com/radsched/radsched/pkg/model"
	"github.com/radsched/radsched/pkg/radsched/timeengine"
)

// SlotInstance is a TemplateSlot projected onto one concrete date.
type SlotInstance struct {
	Slot          model.TemplateSlot
	DateISO       string
	RowID         string
	LocationID    string
	RequiredCount int
	Interval      timeengine.Interval
	Hours         float64 // resolved from the owning SubShift, defaulted if absent
}

// DayType resolves the DayType for dateISO: holiday shadows the ISO
// weekday when dateISO is in the holiday set.
func DayType(dateISO string, holidays map[string]bool) (model.DayType, error) {
	if holidays[dateISO] {
		return model.DayHoliday, nil
	}
	t, err := time.Parse("2006-01-02", dateISO)
	if err != nil {
		return "", err
	}
	return weekdayDayType(t.Weekday()), nil
}

func weekdayDayType(w time.Weekday) model.DayType {
	switch w {
	case time.Monday:
		return model.DayMon
	case time.Tuesday:
		return model.DayTue
	case time.Wednesday:
		return model.DayWed
	case time.Thursday:
		return model.DayThu
	case time.Friday:
		return model.DayFri
	case time.Saturday:
		return model.DaySat
	default:
		return model.DaySun
	}
}

// HolidaySet builds the dateISO -> true lookup the rest of the package
// expects, from the snapshot's Holiday list.
func HolidaySet(holidays []model.Holiday) map[string]bool {
	set := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		set[h.DateISO] = true
	}
	return set
}

// DateRangeISO enumerates every ISO date in [startISO, endISO] inclusive.
func DateRangeISO(startISO, endISO string) ([]string, error) {
	start, err := time.Parse("2006-01-02", startISO)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse("2006-01-02", endISO)
	if err != nil {
		return nil, err
	}
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates, nil
}

// Projector expands a WeeklyTemplate against a date range, applying
// per-instance overrides upward-only and honoring suppressed (count-0)
// instances.
type Projector struct {
	Template model.WeeklyTemplate
	Holidays map[string]bool
	// OverridesByKey is slotOverridesByKey, already merged with any
	// expanded RecurringOverride occurrences by ExpandRecurringOverrides.
	OverridesByKey map[string]int
}

// NewProjector builds a Projector from a snapshot's template, holidays and
// static overrides.
func NewProjector(tpl model.WeeklyTemplate, holidays []model.Holiday, overrides map[string]int) *Projector {
	merged := make(map[string]int, len(overrides))
	for k, v := range overrides {
		merged[k] = v
	}
	return &Projector{Template: tpl, Holidays: HolidaySet(holidays), OverridesByKey: merged}
}

// Project enumerates slot instances for [startISO, endISO], ordered by
// (dateISO, location, rowBand, colBand, subshift).
func (p *Projector) Project(startISO, endISO string) ([]SlotInstance, []error) {
	dates, err := DateRangeISO(startISO, endISO)
	if err != nil {
		return nil, []error{err}
	}

	hoursBySection := make(map[string]float64)
	for _, b := range p.Template.Blocks {
		for _, ss := range b.SubShifts {
			hoursBySection[model.RuntimeRowID(b.ID, ss.ID)] = ss.Hours
		}
	}

	var instances []SlotInstance
	var warnings []error

	for _, locTpl := range p.Template.Locations {
		for _, slot := range locTpl.Slots {
			for _, dateISO := range dates {
				dayType, err := DayType(dateISO, p.Holidays)
				if err != nil {
					warnings = append(warnings, err)
					continue
				}
				if slot.ColBand.DayType != dayType {
					continue
				}

				required := slot.RequiredCount
				key := model.RuntimeKey(slot.RowID(), dateISO)
				if override, ok := p.OverridesByKey[key]; ok && override > required {
					required = override
				}
				if override, ok := p.OverridesByKey[key]; ok && override == 0 {
					continue // suppressed
				}

				iv, err := timeengine.BuildInterval(slot.StartHHMM, slot.EndHHMM, slot.EndDayOffset)
				if err != nil {
					warnings = append(warnings, err)
					continue
				}

				hours, ok := hoursBySection[slot.RowID()]
				if !ok {
					hours = model.DefaultSubShiftHours
				}

				instances = append(instances, SlotInstance{
					Slot:          slot,
					DateISO:       dateISO,
					RowID:         slot.RowID(),
					LocationID:    slot.LocationID,
					RequiredCount: required,
					Interval:      iv,
					Hours:         hours,
				})
			}
		}
	}

	sort.Slice(instances, func(i, j int) bool {
		a, b := instances[i], instances[j]
		if a.DateISO != b.DateISO {
			return a.DateISO < b.DateISO
		}
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		if a.Slot.RowBand.ID != b.Slot.RowBand.ID {
			return a.Slot.RowBand.ID < b.Slot.RowBand.ID
		}
		if a.Slot.ColBand.ID != b.Slot.ColBand.ID {
			return a.Slot.ColBand.ID < b.Slot.ColBand.ID
		}
		return a.RowID < b.RowID
	})

	return instances, warnings
}
