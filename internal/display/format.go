package display

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sensord/internal/reading"
)

// FormatRecord renders a record as
//
//	T:<temp 1dp> H:<humidity 1dp>
//	L:<lux 0dp> Lv:<level 0dp> IR:<Y|N>
func FormatRecord(rec reading.Record) Lines {
	ir := "N"
	if rec.Motion {
		ir = "Y"
	}
	return Lines{
		Line1: fmt.Sprintf("T:%.1f H:%.1f", rec.Temperature, rec.Humidity),
		Line2: fmt.Sprintf("L:%.0f Lv:%.0f IR:%s", rec.Lux, rec.Level, ir),
	}
}

// Placeholder is shown when no record exists for id. An id of 0 means
// nothing has been ingested or selected yet.
func Placeholder(id int64) Lines {
	if id <= 0 {
		return Lines{Line1: "No data", Line2: "Waiting..."}
	}
	return Lines{Line1: "No data", Line2: fmt.Sprintf("ID:%d", id)}
}

// Fit converts s to text the HD44780 character ROM can show and truncates
// it to width columns. Accented letters lose their accents (NFKD), other
// non-ASCII and control characters are dropped. width <= 0 means no limit.
func Fit(s string, width int) string {
	s = norm.NFKD.String(s)
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			continue
		}
		if width > 0 && len(out) == width {
			break
		}
		out = append(out, byte(r))
	}
	return string(out)
}
