package world

import "time"

const (
	// DateLayout is DD-MM-YYYY.
	DateLayout = "02-01-2006"
	// TimestampLayout is DD-MM-YYYY HH:mm:ss.
	TimestampLayout = "02-01-2006 15:04:05"
)

// Pauses commonly used by step definitions.
const (
	Delay100ms = 100 * time.Millisecond
	Delay200ms = 200 * time.Millisecond
	Delay300ms = 300 * time.Millisecond
	Delay500ms = 500 * time.Millisecond
	Delay1s    = time.Second
	Delay2s    = 2 * time.Second
	Delay3s    = 3 * time.Second
	Delay5s    = 5 * time.Second
	Delay10s   = 10 * time.Second
	Delay15s   = 15 * time.Second
	Delay20s   = 20 * time.Second
)

// CurrentDate formats t as DD-MM-YYYY.
func CurrentDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Timestamp formats t as DD-MM-YYYY HH:mm:ss.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
