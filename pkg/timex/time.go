// Package timex JSON 友好的时间类型
package timex

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Layout JSON 中使用的时间格式
const Layout = time.DateTime

// Time serializes as "2006-01-02 15:04:05" in local time; the zero value serializes as ""
// Time 以本地时间 "2006-01-02 15:04:05" 序列化，零值输出空字符串
type Time time.Time

// Now 当前时间
func Now() Time {
	return Time(time.Now())
}

// FromPtr 将可空时间转换为 Time，nil 返回零值
func FromPtr(t *time.Time) Time {
	if t == nil {
		return Time{}
	}
	return Time(*t)
}

func (t Time) MarshalJSON() ([]byte, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return []byte(`""`), nil
	}
	b := make([]byte, 0, len(Layout)+2)
	b = append(b, '"')
	b = tt.Local().AppendFormat(b, Layout)
	b = append(b, '"')
	return b, nil
}

func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = Time{}
		return nil
	}
	if tt, err := time.ParseInLocation(Layout, s, time.Local); err == nil {
		*t = Time(tt)
		return nil
	}
	tt, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return errors.Wrapf(err, "parse time %q", s)
	}
	*t = Time(tt)
	return nil
}

func (t Time) Value() (driver.Value, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return nil, nil
	}
	return tt, nil
}

func (t Time) String() string {
	tt := time.Time(t)
	if tt.IsZero() {
		return ""
	}
	return tt.Local().Format(Layout)
}

// Std 转换为 time.Time
func (t Time) Std() time.Time { return time.Time(t) }

func (t Time) IsZero() bool { return time.Time(t).IsZero() }

func (t Time) Unix() int64 { return time.Time(t).Unix() }

func (t Time) UnixMilli() int64 { return time.Time(t).UnixMilli() }

func (t Time) UnixMicro() int64 { return time.Time(t).UnixMicro() }

func (t Time) UnixNano() int64 { return time.Time(t).UnixNano() }
