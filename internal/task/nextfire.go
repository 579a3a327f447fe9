package task

import (
	"time"

	"github.com/haierkeys/db-backup-service/internal/domain"

	"github.com/pkg/errors"
)

// monthlySearchLimit 每月计划最多向后查找的月数，day 31 最多跳过连续两个短月
const monthlySearchLimit = 48

// NextFire returns the first occurrence of s strictly after now, in now's location.
// Monthly schedules skip months that do not have the configured day.
// NextFire 计算计划在 now 之后的下一次触发时间（严格大于 now）
func NextFire(s *domain.Schedule, now time.Time) (time.Time, error) {
	if s == nil {
		return time.Time{}, errors.Wrap(domain.ErrInvalidSchedule, "nil schedule")
	}
	hour, minute, err := domain.ParseTimeOfDay(s.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	loc := now.Location()
	at := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, hour, minute, 0, 0, loc)
	}
	y, m, d := now.Date()

	switch s.Type {
	case domain.ScheduleDaily:
		next := at(y, m, d)
		if !next.After(now) {
			next = at(y, m, d+1)
		}
		return next, nil

	case domain.ScheduleWeekly:
		days := make(map[time.Weekday]bool, len(s.DaysOfWeek))
		for _, wd := range s.DaysOfWeek {
			if wd < 0 || wd > 6 {
				return time.Time{}, errors.Wrapf(domain.ErrInvalidSchedule, "weekday %d out of range 0-6", wd)
			}
			days[time.Weekday(wd)] = true
		}
		if len(days) == 0 {
			return time.Time{}, errors.Wrap(domain.ErrInvalidSchedule, "weekly schedule requires at least one weekday")
		}
		// 今天到下周同一天，共 8 天
		for i := 0; i <= 7; i++ {
			next := at(y, m, d+i)
			if days[next.Weekday()] && next.After(now) {
				return next, nil
			}
		}

	case domain.ScheduleMonthly:
		dom := s.DayOfMonth
		if dom < 1 || dom > 31 {
			return time.Time{}, errors.Wrapf(domain.ErrInvalidSchedule, "day of month %d out of range 1-31", dom)
		}
		for i := 0; i < monthlySearchLimit; i++ {
			first := time.Date(y, m+time.Month(i), 1, 0, 0, 0, 0, loc)
			next := at(first.Year(), first.Month(), dom)
			// 日期溢出到下个月说明该月没有这一天
			if next.Month() != first.Month() {
				continue
			}
			if next.After(now) {
				return next, nil
			}
		}

	default:
		return time.Time{}, errors.Wrapf(domain.ErrInvalidSchedule, "unknown schedule type %q", s.Type)
	}
	return time.Time{}, errors.Wrap(domain.ErrInvalidSchedule, "no next occurrence found")
}
