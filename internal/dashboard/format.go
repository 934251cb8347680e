package dashboard

import (
	"fmt"

	"svinn/internal/core"
)

var (
	weekdaysSV = [...]string{"sön", "mån", "tis", "ons", "tors", "fre", "lör"}
	monthsSV   = [...]string{"jan.", "feb.", "mars", "apr.", "maj", "juni", "juli", "aug.", "sep.", "okt.", "nov.", "dec."}
)

// FormatDay renders a day key the way the history table shows it,
// e.g. "mån 1 jan.". Unparseable keys are returned unchanged.
func FormatDay(day string) string {
	t, err := core.ParseDay(day)
	if err != nil {
		return day
	}
	return fmt.Sprintf("%s %d %s", weekdaysSV[t.Weekday()], t.Day(), monthsSV[t.Month()-1])
}
