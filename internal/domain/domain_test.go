package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validTarget() *Target {
	return &Target{
		Name:              "orders",
		Host:              "db.internal",
		Port:              3306,
		DatabaseName:      "orders",
		BackupPath:        "/var/backups/orders",
		Compression:       CompressionZip,
		RetainMainDays:    7,
		RetainArchiveDays: 30,
	}
}

func TestTargetValidate(t *testing.T) {
	assert.NoError(t, validTarget().Validate())

	cases := map[string]func(*Target){
		"port zero":          func(x *Target) { x.Port = 0 },
		"port too big":       func(x *Target) { x.Port = 65536 },
		"negative retention": func(x *Target) { x.RetainArchiveDays = -1 },
		"bad compression":    func(x *Target) { x.Compression = "bzip2" },
		"empty name":         func(x *Target) { x.Name = " " },
		"bad host":           func(x *Target) { x.Host = "bad host!" },
		"ipv6 host":          func(x *Target) { x.Host = "::1" },
	}
	for name, mutate := range cases {
		tg := validTarget()
		mutate(tg)
		err := tg.Validate()
		assert.True(t, errors.Is(err, ErrInvalidTarget), name)
	}
}

func TestValidHost(t *testing.T) {
	for _, h := range []string{"localhost", "127.0.0.1", "db-1.example.com", "mysql"} {
		assert.True(t, ValidHost(h), h)
	}
	for _, h := range []string{"", "-bad.com", "a..b", "bad_host"} {
		assert.False(t, ValidHost(h), h)
	}
}

func TestScheduleValidate(t *testing.T) {
	ok := []Schedule{
		{TargetID: 1, Type: ScheduleDaily, TimeOfDay: "00:00"},
		{TargetID: 1, Type: ScheduleWeekly, TimeOfDay: "23:59", DaysOfWeek: []int{0, 6}},
		{TargetID: 1, Type: ScheduleMonthly, TimeOfDay: "02:30", DayOfMonth: 31},
	}
	for _, s := range ok {
		assert.NoError(t, s.Validate(), s.Type)
	}

	bad := []Schedule{
		{TargetID: 0, Type: ScheduleDaily, TimeOfDay: "02:00"},
		{TargetID: 1, Type: ScheduleDaily, TimeOfDay: "24:00"},
		{TargetID: 1, Type: ScheduleDaily, TimeOfDay: "2:00"},
		{TargetID: 1, Type: ScheduleWeekly, TimeOfDay: "02:00"},
		{TargetID: 1, Type: ScheduleWeekly, TimeOfDay: "02:00", DaysOfWeek: []int{7}},
		{TargetID: 1, Type: ScheduleMonthly, TimeOfDay: "02:00", DayOfMonth: 0},
		{TargetID: 1, Type: ScheduleMonthly, TimeOfDay: "02:00", DayOfMonth: 32},
		{TargetID: 1, Type: "hourly", TimeOfDay: "02:00"},
	}
	for _, s := range bad {
		assert.ErrorIs(t, s.Validate(), ErrInvalidSchedule, "%+v", s)
	}
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityError.AtLeast(SeverityWarning))
	assert.True(t, SeverityWarning.AtLeast(SeverityWarning))
	assert.False(t, SeverityInfo.AtLeast(SeverityWarning))
	assert.True(t, SeverityInfo.AtLeast(SeverityInfo))
}

func TestSplitRecipients(t *testing.T) {
	assert.Equal(t, []string{"a@x.io", "b@x.io"}, SplitRecipients(" a@x.io; b@x.io ,"))
	assert.Empty(t, SplitRecipients(""))
}
