package instrumentdoc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hklreduce/hklreduce/internal/xerr"
)

// lengthUnits converts each suffix to the reducer's internal lab-length
// unit, millimetres (spec §6: "Lengths accept a unit suffix from a
// closed set {m, cm, mm, um, nm, pm, fm, ang}").
var lengthUnits = map[string]float64{
	"m":   1e3,
	"cm":  1e1,
	"mm":  1,
	"um":  1e-3,
	"nm":  1e-6,
	"pm":  1e-9,
	"fm":  1e-12,
	"ang": 1e-7,
}

// angleUnits converts each suffix to radians.
var angleUnits = map[string]float64{
	"rad":  1,
	"deg":  math.Pi / 180,
	"mrad": 1e-3,
}

// timeUnits converts each suffix to seconds.
var timeUnits = map[string]float64{
	"s":    1,
	"ms":   1e-3,
	"us":   1e-6,
	"min":  60,
	"hour": 3600,
	"day":  86400,
	"year": 365.25 * 86400,
}

func parseSuffixed(s string, table map[string]float64, kind string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty %s value", xerr.InvalidInput, kind)
	}
	for _, suffix := range sortedBySuffixLength(table) {
		if strings.HasSuffix(s, suffix) {
			numeric := strings.TrimSpace(strings.TrimSuffix(s, suffix))
			v, err := strconv.ParseFloat(numeric, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: bad %s value %q: %v", xerr.InvalidInput, kind, s, err)
			}
			return v * table[suffix], nil
		}
	}
	return 0, fmt.Errorf("%w: %s value %q has no recognized unit suffix", xerr.InvalidInput, kind, s)
}

// sortedBySuffixLength returns the table's keys longest-first, so e.g.
// "mrad" is tried before "rad" when matching a suffix.
func sortedBySuffixLength(table map[string]float64) []string {
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func parseLength(s string) (float64, error) { return parseSuffixed(s, lengthUnits, "length") }
func parseAngle(s string) (float64, error)  { return parseSuffixed(s, angleUnits, "angle") }
func parseTime(s string) (float64, error)   { return parseSuffixed(s, timeUnits, "time") }
