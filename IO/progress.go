package IO

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// PrintProgress overwrites the current terminal line with a percentage and
// a small bouncing marker. total <= 0 prints the marker alone.
func PrintProgress(w io.Writer, i, total int) {
	j := (i / 100) % 10
	if total <= 0 {
		printOW(w, "Loading: "+strings.Repeat(".", max(j-1, 0))+"o"+strings.Repeat(".", 10-j))
		return
	}
	pct := int(float64(i) / float64(total) * 100)
	printOW(w, fmt.Sprintf("Loading: %d%% [%s=%s]", pct, strings.Repeat(" ", j), strings.Repeat(" ", 9-j)))
}

func printOW(w io.Writer, s string) {
	fmt.Fprint(w, "\r"+strings.Repeat(" ", 35))
	fmt.Fprint(w, "\r"+s)
}

// TimeSince formats the elapsed time as "Xm Ys".
func TimeSince(start time.Time) string {
	return FormatElapsed(time.Since(start))
}

func FormatElapsed(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%dm %ds", s/60, s%60)
}
