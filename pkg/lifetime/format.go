package lifetime

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// ParseLifetime parses a duration written exactly as "dd.hh:mm:ss".
// Every field is two digits; hours stay below 24, minutes and seconds below 60.
func ParseLifetime(s string) (time.Duration, error) {
	if len(s) != 11 || s[2] != '.' || s[5] != ':' || s[8] != ':' {
		return 0, fmt.Errorf("lifetime %q: want dd.hh:mm:ss", s)
	}

	fields := [4]int{}
	for i, off := range [4]int{0, 3, 6, 9} {
		hi, lo := s[off], s[off+1]
		if !isDigit(hi) || !isDigit(lo) {
			return 0, fmt.Errorf("lifetime %q: want dd.hh:mm:ss", s)
		}
		fields[i] = int(hi-'0')*10 + int(lo-'0')
	}

	days, hours, minutes, seconds := fields[0], fields[1], fields[2], fields[3]
	if hours > 23 || minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("lifetime %q: field out of range", s)
	}

	return time.Duration(days)*day +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second, nil
}

// FormatLifetime renders d as "dd.hh:mm:ss", truncating below one second.
// Durations of 100 days or more do not fit the format and are rendered with
// as many day digits as needed.
func FormatLifetime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := d / day
	d -= days * day
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	return fmt.Sprintf("%02d.%02d:%02d:%02d", days, hours, minutes, seconds)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
