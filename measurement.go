package pmsense

import (
	"fmt"
	"strings"
	"time"
)

// ChannelValue is one decoded concentration channel.
type ChannelValue struct {
	Channel string
	Value   float64
	Unit    string
}

// Measurement is the uniform decoded result of one valid frame. It exists
// only if the frame passed validation; values are final once produced.
type Measurement struct {
	Time     time.Time
	Sensor   string // family name
	DeviceID string // hex device id when present in the frame, else ""
	Channels []ChannelValue
}

// Value looks up a channel by name.
func (m Measurement) Value(channel string) (float64, bool) {
	for _, c := range m.Channels {
		if c.Channel == channel {
			return c.Value, true
		}
	}
	return 0, false
}

func (m Measurement) fmtChannel(c ChannelValue) string {
	if c.Unit == UnitUgm3 && c.Value == float64(int64(c.Value)) {
		return fmt.Sprintf("%.0f", c.Value)
	}
	if c.Unit == UnitUgm3 {
		return fmt.Sprintf("%.1f", c.Value)
	}
	return fmt.Sprintf("%.0f", c.Value)
}

// String renders the mass concentration channels, like
// "2019-08-30 22:55:23: PM1 5, PM2.5 13, PM10 22 ug/m3".
func (m Measurement) String() string {
	parts := []string{}
	for _, c := range m.Channels {
		if c.Unit != UnitUgm3 || strings.HasPrefix(c.Channel, "raw") {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s", displayName(c.Channel), m.fmtChannel(c)))
	}
	return fmt.Sprintf("%s: %s %s", m.Time.Format("2006-01-02 15:04:05"), strings.Join(parts, ", "), UnitUgm3)
}

// CSVHeader is the header row matching CSVRow for this family's channels.
func (m Measurement) CSVHeader() string {
	cols := make([]string, 0, len(m.Channels)+1)
	cols = append(cols, "time")
	for _, c := range m.Channels {
		cols = append(cols, c.Channel)
	}
	return strings.Join(cols, ", ")
}

// CSVRow renders the measurement as one comma separated row, seconds since
// epoch first.
func (m Measurement) CSVRow() string {
	cols := make([]string, 0, len(m.Channels)+1)
	cols = append(cols, fmt.Sprintf("%d", m.Time.Unix()))
	for _, c := range m.Channels {
		cols = append(cols, m.fmtChannel(c))
	}
	return strings.Join(cols, ", ")
}

var channelDisplay = map[string]string{
	"pm01": "PM1", "pm25": "PM2.5", "pm10": "PM10",
	"n0_3": "N0.3", "n0_5": "N0.5", "n1_0": "N1.0",
	"n2_5": "N2.5", "n5_0": "N5.0", "n10_0": "N10",
	"hcho": "HCHO",
}

func displayName(channel string) string {
	if d, ok := channelDisplay[channel]; ok {
		return d
	}
	return channel
}
