package tool

import (
	"time"
)

var l, _ = time.LoadLocation("UTC")

func MakeTimestamp() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func MakeDate(timestamp int64) string {
	timeFormat := "2006-01-02 15:04:05(UTC)"
	return time.Unix(timestamp/1000, 0).In(l).Format(timeFormat)
}

// MillisOr 毫秒时间戳转 time.Time，非正数时返回 fallback
func MillisOr(timestamp int64, fallback time.Time) time.Time {
	if timestamp <= 0 {
		return fallback
	}
	return time.UnixMilli(timestamp)
}

// SinceMillis 距 start（毫秒时间戳）经过的毫秒数，用于响应里的 processingTime
func SinceMillis(start int64) int64 {
	return MakeTimestamp() - start
}
