package wialon

import (
	"strconv"
	"strings"
	"time"
)

// Provider-specific value formats are parsed only here. All conversions are
// total: malformed input falls back to a default instead of failing the row.

const reportDateLayout = "02.01.2006 15:04:05"

// ParseReportDate converts a report cell to a timestamp. Numeric cells are
// Unix-seconds epochs; string cells use the provider's dd.mm.yyyy HH:MM:SS
// format, read as UTC. Anything else yields the current time.
func ParseReportDate(v any) time.Time {
	switch d := v.(type) {
	case float64:
		return time.Unix(int64(d), 0).UTC()
	case int64:
		return time.Unix(d, 0).UTC()
	case string:
		t, err := time.Parse(reportDateLayout, strings.TrimSpace(d))
		if err != nil {
			return time.Now().UTC()
		}
		return t
	default:
		return time.Now().UTC()
	}
}

// ParseDurationSeconds converts a duration cell to seconds. Numeric cells
// pass through; string cells are "HH:MM:SS" or "<days> days HH:MM:SS".
func ParseDurationSeconds(v any) int64 {
	switch d := v.(type) {
	case float64:
		return int64(d)
	case int64:
		return d
	case string:
		return parseDurationString(d)
	default:
		return 0
	}
}

func parseDurationString(s string) int64 {
	var days int64
	if strings.Contains(s, "days") {
		parts := strings.SplitN(s, " days ", 2)
		days, _ = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if len(parts) == 2 {
			s = parts[1]
		} else {
			s = ""
		}
	}

	fields := strings.Split(strings.TrimSpace(s), ":")
	if len(fields) != 3 {
		return days * 86400
	}
	h, _ := strconv.ParseInt(fields[0], 10, 64)
	m, _ := strconv.ParseInt(fields[1], 10, 64)
	sec, _ := strconv.ParseInt(fields[2], 10, 64)
	return days*86400 + h*3600 + m*60 + sec
}

// ParseCleanNumber extracts a float from a cell that may carry unit suffixes
// (e.g. "12.5 l"). Unparsable or empty input yields 0.
func ParseCleanNumber(v any) float64 {
	switch d := v.(type) {
	case float64:
		return d
	case int64:
		return float64(d)
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				return r
			}
			return -1
		}, d)
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
