package sink

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmsense"
)

func testMeasurement(t *testing.T) pmsense.Measurement {
	t.Helper()
	return pmsense.Measurement{
		Time:   time.Date(2019, 8, 30, 22, 55, 23, 0, time.UTC),
		Sensor: "PMSx003",
		Channels: []pmsense.ChannelValue{
			{Channel: "pm01", Value: 5, Unit: pmsense.UnitUgm3},
			{Channel: "pm25", Value: 13, Unit: pmsense.UnitUgm3},
			{Channel: "pm10", Value: 22, Unit: pmsense.UnitUgm3},
			{Channel: "n0_3", Value: 765, Unit: pmsense.UnitPer0_1L},
			{Channel: "n0_5", Value: 252, Unit: pmsense.UnitPer0_1L},
		},
	}
}

func TestConsolePM(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, FormatPM)
	require.NoError(t, c.Publish(testMeasurement(t)))
	assert.Equal(t, "2019-08-30 22:55:23: PM1 5, PM2.5 13, PM10 22 ug/m3\n", buf.String())
}

func TestConsoleNum(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, FormatNum)
	require.NoError(t, c.Publish(testMeasurement(t)))
	assert.Equal(t, "2019-08-30 22:55:23: N0.3 765, N0.5 252 #/0.1L\n", buf.String())
}

// Sensors without number concentration channels fall back to the PM line
// instead of printing an empty row.
func TestConsoleNumFallback(t *testing.T) {
	m := testMeasurement(t)
	m.Channels = m.Channels[:3]
	var buf bytes.Buffer
	c := NewConsole(&buf, FormatNum)
	require.NoError(t, c.Publish(m))
	assert.Contains(t, buf.String(), "PM2.5 13")
}

func TestConsoleRaw(t *testing.T) {
	m := testMeasurement(t)
	m.Channels = append([]pmsense.ChannelValue{
		{Channel: "raw01", Value: 6, Unit: pmsense.UnitUgm3},
		{Channel: "raw25", Value: 14, Unit: pmsense.UnitUgm3},
		{Channel: "raw10", Value: 23, Unit: pmsense.UnitUgm3},
	}, m.Channels...)
	var buf bytes.Buffer
	c := NewConsole(&buf, FormatRaw)
	require.NoError(t, c.Publish(m))
	assert.Equal(t, "2019-08-30 22:55:23: PM1 6, PM2.5 14, PM10 23 ug/m3 (raw)\n", buf.String())
}

func TestConsoleCF(t *testing.T) {
	m := testMeasurement(t)
	m.Channels = append([]pmsense.ChannelValue{
		{Channel: "raw01", Value: 10, Unit: pmsense.UnitUgm3},
		{Channel: "raw25", Value: 13, Unit: pmsense.UnitUgm3},
		{Channel: "raw10", Value: 0, Unit: pmsense.UnitUgm3},
	}, m.Channels...)
	// pm01 5/10, pm25 13/13, pm10 22/0 (zero raw, nonzero pm)
	var buf bytes.Buffer
	c := NewConsole(&buf, FormatCF)
	require.NoError(t, c.Publish(m))
	assert.Equal(t, "2019-08-30 22:55:23: CF1 0.5, CF2.5 1.0, CF10 0.0\n", buf.String())
}

func TestCorrectionFactorIdleSensor(t *testing.T) {
	assert.Equal(t, 1.0, correctionFactor(0, 0))
	assert.Equal(t, 0.0, correctionFactor(5, 0))
	assert.Equal(t, 0.5, correctionFactor(5, 10))
}

// Families without raw channels fall back to the PM line for both formats.
func TestConsoleRawCFFallback(t *testing.T) {
	m := testMeasurement(t)
	for _, format := range []string{FormatRaw, FormatCF} {
		var buf bytes.Buffer
		c := NewConsole(&buf, format)
		require.NoError(t, c.Publish(m))
		assert.Contains(t, buf.String(), "PM2.5 13", format)
	}
}

func TestConsoleCSVHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, FormatCSV)
	m := testMeasurement(t)
	require.NoError(t, c.Publish(m))
	require.NoError(t, c.Publish(m))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "time, pm01, pm25, pm10, n0_3, n0_5", lines[0])
	assert.Equal(t, lines[1], lines[2])
}

func TestCSVAppendKeepsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.csv")
	m := testMeasurement(t)

	c, err := NewCSV(path, false)
	require.NoError(t, err)
	require.NoError(t, c.Publish(m))
	require.NoError(t, c.Close())

	// reopening in append mode must not repeat the header
	c, err = NewCSV(path, false)
	require.NoError(t, err)
	require.NoError(t, c.Publish(m))
	require.NoError(t, c.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "time, "))
	assert.Equal(t, lines[1], lines[2])
}

func TestCSVOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.csv")
	m := testMeasurement(t)

	c, err := NewCSV(path, false)
	require.NoError(t, err)
	require.NoError(t, c.Publish(m))
	require.NoError(t, c.Publish(m))
	require.NoError(t, c.Close())

	c, err = NewCSV(path, true)
	require.NoError(t, err)
	require.NoError(t, c.Publish(m))
	require.NoError(t, c.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2) // header and one row, the old file is gone
}

func TestDecodeBridgeTopic(t *testing.T) {
	at := time.Now()

	data, err := DecodeBridgeTopic("homie/test/pm25/concentration", "13.5", at)
	require.NoError(t, err)
	assert.Equal(t, "test", data.Location)
	assert.Equal(t, "pm25", data.Measurement)
	assert.Equal(t, 13.5, data.Value)
	assert.Equal(t, at, data.Time)

	_, err = DecodeBridgeTopic("homie/test/$online", "true", at)
	assert.Error(t, err, "wrong depth")
	_, err = DecodeBridgeTopic("homie/test/pm25/$retained", "1", at)
	assert.Error(t, err, "system topic")
	_, err = DecodeBridgeTopic("homie/test/pm25/concentration", "high", at)
	assert.Error(t, err, "non numeric payload")
}

func TestFanout(t *testing.T) {
	var a, b bytes.Buffer
	f := Fanout{NewConsole(&a, FormatPM), NewConsole(&b, FormatCSV)}
	require.NoError(t, f.Publish(testMeasurement(t)))
	assert.Contains(t, a.String(), "PM2.5 13")
	assert.Contains(t, b.String(), "time, pm01")
	require.NoError(t, f.Close())
}
