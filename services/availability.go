package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"huntzen-care/models"
)

const slotStep = 30 * time.Minute

type AvailabilitySlot struct {
	DayOfWeek int
	StartTime string
	EndTime   string
}

// parseClock converts "HH:MM" to minutes after midnight.
func parseClock(v string) (int, error) {
	if len(v) != 5 {
		return 0, invalidf("time %q must be HH:MM", v)
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, invalidf("time %q must be HH:MM", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

type clockRange struct {
	day        int
	start, end int
}

func validateSlots(slots []AvailabilitySlot) error {
	ranges := make([]clockRange, 0, len(slots))
	for _, slot := range slots {
		if slot.DayOfWeek < 0 || slot.DayOfWeek > 6 {
			return invalidf("day_of_week must be between 0 and 6")
		}
		start, err := parseClock(slot.StartTime)
		if err != nil {
			return err
		}
		end, err := parseClock(slot.EndTime)
		if err != nil {
			return err
		}
		if start >= end {
			return invalidf("slot %s-%s must start before it ends", slot.StartTime, slot.EndTime)
		}
		ranges = append(ranges, clockRange{day: slot.DayOfWeek, start: start, end: end})
	}

	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].day != ranges[j].day {
			return ranges[i].day < ranges[j].day
		}
		return ranges[i].start < ranges[j].start
	})
	for i := 1; i < len(ranges); i++ {
		prev, cur := ranges[i-1], ranges[i]
		if prev.day == cur.day && cur.start < prev.end {
			return invalidf("availability slots overlap on day %d", cur.day)
		}
	}
	return nil
}

// SetAvailability replaces the acting practitioner's weekly schedule.
func (s *PractitionerService) SetAvailability(ctx context.Context, actor Actor, slots []AvailabilitySlot) ([]models.Availability, error) {
	p, err := s.byUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := validateSlots(slots); err != nil {
		return nil, err
	}

	rows := make([]models.Availability, 0, len(slots))
	for _, slot := range slots {
		rows = append(rows, models.Availability{
			PractitionerID: p.ID,
			DayOfWeek:      slot.DayOfWeek,
			StartTime:      slot.StartTime,
			EndTime:        slot.EndTime,
			IsActive:       true,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("practitioner_id = ?", p.ID).Delete(&models.Availability{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("replace availability: %w", err)
	}

	s.activity.Log(ctx, actor.UserID, ActionAvailabilityUpdated, "practitioner", p.ID, fmt.Sprintf("%d slots", len(rows)))
	s.invalidate(ctx, cachePrefixPractitioners)
	return s.GetAvailability(ctx, p.ID)
}

func (s *PractitionerService) GetAvailability(ctx context.Context, practitionerID uint) ([]models.Availability, error) {
	var out []models.Availability
	err := s.db.WithContext(ctx).
		Where("practitioner_id = ? AND is_active = ?", practitionerID, true).
		Order("day_of_week ASC").Order("start_time ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	if out == nil {
		out = []models.Availability{}
	}
	return out, nil
}

// fitsAvailability reports whether [start, end) lies inside one weekly slot.
// A practitioner with no slots accepts any time.
func fitsAvailability(slots []models.Availability, start, end time.Time) bool {
	if len(slots) == 0 {
		return true
	}
	start = start.UTC()
	from := start.Hour()*60 + start.Minute()
	to := from + int(end.Sub(start).Minutes())
	for _, slot := range slots {
		if !slot.IsActive || slot.DayOfWeek != int(start.Weekday()) {
			continue
		}
		slotStart, err1 := parseClock(slot.StartTime)
		slotEnd, err2 := parseClock(slot.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if from >= slotStart && to <= slotEnd {
			return true
		}
	}
	return false
}

// AvailableSlots lists bookable start times on the given UTC date, stepping
// through each availability window in 30 minute increments.
func (s *PractitionerService) AvailableSlots(ctx context.Context, practitionerID uint, date time.Time, duration int) ([]time.Time, error) {
	if duration == 0 {
		duration = defaultDuration
	}
	if err := validateDuration(duration); err != nil {
		return nil, err
	}

	var p models.Practitioner
	if err := s.publicPractitioners(s.db.WithContext(ctx).Model(&models.Practitioner{})).First(&p, practitionerID).Error; err != nil {
		return nil, lookup(err, "practitioner")
	}
	slots := []time.Time{}
	if !p.IsAvailable {
		return slots, nil
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := day.Add(24 * time.Hour)

	var windows []models.Availability
	if err := s.db.WithContext(ctx).
		Where("practitioner_id = ? AND day_of_week = ? AND is_active = ?", p.ID, int(day.Weekday()), true).
		Order("start_time ASC").
		Find(&windows).Error; err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	if len(windows) == 0 {
		return slots, nil
	}

	var booked []models.Consultation
	if err := s.db.WithContext(ctx).
		Where("practitioner_id = ? AND status IN ? AND scheduled_at < ? AND end_at > ?", p.ID, models.ActiveStatuses, dayEnd, day).
		Find(&booked).Error; err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	now := s.clock()
	length := time.Duration(duration) * time.Minute
	for _, w := range windows {
		from, err1 := parseClock(w.StartTime)
		to, err2 := parseClock(w.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		windowEnd := day.Add(time.Duration(to) * time.Minute)
		for start := day.Add(time.Duration(from) * time.Minute); !start.Add(length).After(windowEnd); start = start.Add(slotStep) {
			if !start.After(now) {
				continue
			}
			if overlapsAny(booked, start, start.Add(length)) {
				continue
			}
			slots = append(slots, start)
		}
	}
	return slots, nil
}

func overlapsAny(booked []models.Consultation, start, end time.Time) bool {
	for _, c := range booked {
		if c.ScheduledAt.Before(end) && c.EndAt.After(start) {
			return true
		}
	}
	return false
}
