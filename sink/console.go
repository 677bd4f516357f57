package sink

import (
	"fmt"
	"io"
	"strings"

	"pmsense"
)

// Console formats. Default renders the mass concentration channels.
const (
	FormatPM  = "pm"  // "PM1 5, PM2.5 13, PM10 22 ug/m3"
	FormatNum = "num" // number concentration channels
	FormatRaw = "raw" // cf=1 raw PM estimates
	FormatCF  = "cf"  // pm/raw correction factors
	FormatCSV = "csv" // comma separated row, header printed first
)

// Console writes measurements as text lines.
type Console struct {
	w       io.Writer
	format  string
	started bool
}

// NewConsole creates a console sink with one of the Format constants.
// Unknown formats fall back to FormatPM.
func NewConsole(w io.Writer, format string) *Console {
	return &Console{w: w, format: format}
}

func (c *Console) Publish(m pmsense.Measurement) error {
	var line string
	switch c.format {
	case FormatCSV:
		if !c.started {
			if _, err := fmt.Fprintln(c.w, m.CSVHeader()); err != nil {
				return err
			}
		}
		line = m.CSVRow()
	case FormatNum:
		line = numLine(m)
	case FormatRaw:
		line = rawLine(m)
	case FormatCF:
		line = cfLine(m)
	default:
		line = m.String()
	}
	c.started = true
	_, err := fmt.Fprintln(c.w, line)
	return err
}

func (c *Console) Close() error { return nil }

// numLine renders the number concentration channels, like
// "2019-08-30 22:55:23: N0.3 765, N0.5 252, ... #/0.1L".
func numLine(m pmsense.Measurement) string {
	parts := []string{}
	for _, ch := range m.Channels {
		if ch.Unit != pmsense.UnitPer0_1L {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %.0f", displayName(ch.Channel), ch.Value))
	}
	if len(parts) == 0 {
		return m.String()
	}
	return fmt.Sprintf("%s: %s %s", m.Time.Format("2006-01-02 15:04:05"),
		strings.Join(parts, ", "), pmsense.UnitPer0_1L)
}

// rawLine renders the cf=1 raw PM estimates, like
// "2019-08-30 22:55:23: PM1 6, PM2.5 14, PM10 23 ug/m3 (raw)".
func rawLine(m pmsense.Measurement) string {
	parts := []string{}
	for _, ch := range m.Channels {
		name, ok := rawDisplay[ch.Channel]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %.0f", name, ch.Value))
	}
	if len(parts) == 0 {
		return m.String()
	}
	return fmt.Sprintf("%s: %s %s (raw)", m.Time.Format("2006-01-02 15:04:05"),
		strings.Join(parts, ", "), pmsense.UnitUgm3)
}

// cfLine renders the pm/raw correction factors, like
// "2019-08-30 22:55:23: CF1 0.8, CF2.5 0.9, CF10 1.0".
func cfLine(m pmsense.Measurement) string {
	parts := []string{}
	for _, p := range cfPairs {
		pm, ok := m.Value(p.pm)
		if !ok {
			continue
		}
		raw, ok := m.Value(p.raw)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %.1f", p.name, correctionFactor(pm, raw)))
	}
	if len(parts) == 0 {
		return m.String()
	}
	return fmt.Sprintf("%s: %s", m.Time.Format("2006-01-02 15:04:05"), strings.Join(parts, ", "))
}

// correctionFactor is pm/raw, with the zero raw estimate pinned so an idle
// sensor reads as factor 1 rather than a division blowup.
func correctionFactor(pm, raw float64) float64 {
	if raw != 0 {
		return pm / raw
	}
	if pm == 0 {
		return 1
	}
	return 0
}

var rawDisplay = map[string]string{
	"raw01": "PM1", "raw25": "PM2.5", "raw10": "PM10",
}

var cfPairs = []struct{ name, pm, raw string }{
	{"CF1", "pm01", "raw01"},
	{"CF2.5", "pm25", "raw25"},
	{"CF10", "pm10", "raw10"},
}

var numDisplay = map[string]string{
	"n0_3": "N0.3", "n0_5": "N0.5", "n1_0": "N1.0",
	"n2_5": "N2.5", "n5_0": "N5.0", "n10_0": "N10",
}

func displayName(channel string) string {
	if d, ok := numDisplay[channel]; ok {
		return d
	}
	return channel
}
