package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ScheduleType 计划类型
type ScheduleType string

const (
	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"
)

// Schedule 计划领域模型
type Schedule struct {
	ID       int64
	TargetID int64
	Type     ScheduleType
	// TimeOfDay 24 小时制 "HH:MM"，本地时区
	TimeOfDay string
	// DaysOfWeek 0=周日 ... 6=周六，仅 weekly 使用
	DaysOfWeek []int
	// DayOfMonth 1-31，仅 monthly 使用
	DayOfMonth int
	IsActive   bool
	LastRunAt  *time.Time
	NextRunAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var timeOfDayRe = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ParseTimeOfDay splits "HH:MM" into hour and minute
// ParseTimeOfDay 解析 "HH:MM"
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if !timeOfDayRe.MatchString(s) {
		return 0, 0, errors.Wrapf(ErrInvalidSchedule, "time %q is not HH:MM", s)
	}
	hour, _ = strconv.Atoi(s[:2])
	minute, _ = strconv.Atoi(s[3:])
	return hour, minute, nil
}

// Validate checks type-specific invariants
// Validate 校验计划字段，weekly 需要星期列表，monthly 需要日期
func (s *Schedule) Validate() error {
	if s.TargetID <= 0 {
		return errors.Wrap(ErrInvalidSchedule, "target is required")
	}
	if _, _, err := ParseTimeOfDay(s.TimeOfDay); err != nil {
		return err
	}
	switch s.Type {
	case ScheduleDaily:
	case ScheduleWeekly:
		if len(s.DaysOfWeek) == 0 {
			return errors.Wrap(ErrInvalidSchedule, "weekly schedule requires at least one weekday")
		}
		for _, d := range s.DaysOfWeek {
			if d < 0 || d > 6 {
				return errors.Wrapf(ErrInvalidSchedule, "weekday %d out of range 0-6", d)
			}
		}
	case ScheduleMonthly:
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return errors.Wrapf(ErrInvalidSchedule, "day of month %d out of range 1-31", s.DayOfMonth)
		}
	default:
		return errors.Wrap(ErrInvalidSchedule, fmt.Sprintf("unknown schedule type %q", s.Type))
	}
	return nil
}

// JobID 调度器中的任务标识
func (s *Schedule) JobID() string {
	return fmt.Sprintf("backup_job_%d", s.ID)
}
