package pmsense

import (
	"strings"
	"testing"
	"time"
)

func TestMeasurementString(t *testing.T) {
	m := decodeGolden(t, "PMSx003", pmsx003Hex)
	m.Time = time.Date(2019, 8, 30, 22, 55, 23, 0, time.UTC)
	got := m.String()
	want := "2019-08-30 22:55:23: PM1 5, PM2.5 13, PM10 22 ug/m3"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestMeasurementStringFractional(t *testing.T) {
	m := decodeGolden(t, "SDS011", sds011Hex)
	got := m.String()
	if !strings.Contains(got, "PM2.5 123.6") || !strings.Contains(got, "PM10 261.8") {
		t.Errorf("String() = %q", got)
	}
}

func TestMeasurementCSV(t *testing.T) {
	m := decodeGolden(t, "PMS3003", pms3003Hex)
	m.Time = time.Unix(1567201793, 0)
	if got, want := m.CSVHeader(), "time, raw01, raw25, raw10, pm01, pm25, pm10"; got != want {
		t.Errorf("CSVHeader() = %q, want %q", got, want)
	}
	if got, want := m.CSVRow(), "1567201793, 81, 106, 119, 53, 70, 79"; got != want {
		t.Errorf("CSVRow() = %q, want %q", got, want)
	}
}

func TestMeasurementValueMissing(t *testing.T) {
	m := decodeGolden(t, "SDS011", sds011Hex)
	if _, ok := m.Value("hcho"); ok {
		t.Error("SDS011 reported a channel it does not have")
	}
}
