package convert

import (
	"time"

	"github.com/haierkeys/db-backup-service/pkg/timex"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

// timeConverters time.Time / *time.Time -> timex.Time
var timeConverters = []copier.TypeConverter{
	{
		SrcType: time.Time{},
		DstType: timex.Time{},
		Fn: func(src interface{}) (interface{}, error) {
			return timex.Time(src.(time.Time)), nil
		},
	},
	{
		SrcType: &time.Time{},
		DstType: timex.Time{},
		Fn: func(src interface{}) (interface{}, error) {
			return timex.FromPtr(src.(*time.Time)), nil
		},
	},
}

// StructAssign
// dst 目标结构体，src 源结构体
// 它会把src与dst的相同字段名的值，复制到dst中；time.Time 自动转为 timex.Time
func StructAssign(src any, dst any) error {
	if err := copier.CopyWithOption(dst, src, copier.Option{Converters: timeConverters}); err != nil {
		return errors.Wrap(err, "copy struct")
	}
	return nil
}
