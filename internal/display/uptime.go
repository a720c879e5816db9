// SPDX-License-Identifier: MIT

package display

import (
	"fmt"
	"strings"
	"time"
)

// FormatUptime renders d as "Uptime: [N yrs ][N wks ][N days ][N hrs ][N mins ]N secs".
// A year is 365 days. Zero units are omitted except seconds.
func FormatUptime(d time.Duration) string {
	sec := int64(d / time.Second)
	if sec < 0 {
		sec = 0
	}
	mins, sec := sec/60, sec%60
	hrs, mins := mins/60, mins%60
	days, hrs := hrs/24, hrs%24
	yrs, days := days/365, days%365
	wks, days := days/7, days%7

	var b strings.Builder
	b.WriteString("Uptime: ")
	for _, part := range []struct {
		n    int64
		unit string
	}{{yrs, "yrs"}, {wks, "wks"}, {days, "days"}, {hrs, "hrs"}, {mins, "mins"}} {
		if part.n > 0 {
			fmt.Fprintf(&b, "%d %s ", part.n, part.unit)
		}
	}
	fmt.Fprintf(&b, "%d secs", sec)
	return b.String()
}
