package sink

import (
	"fmt"
	"os"

	"pmsense"
)

// CSV appends measurements to a file, writing the header row only when the
// file starts out empty so capture files can be resumed.
type CSV struct {
	f *os.File
}

// NewCSV opens (or creates) the capture file in append mode. With
// overwrite set, an existing file is truncated first.
func NewCSV(path string, overwrite bool) (*CSV, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if overwrite {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("open capture file %v: %w", path, err)
	}
	return &CSV{f: f}, nil
}

func (c *CSV) Publish(m pmsense.Measurement) error {
	st, err := c.f.Stat()
	if err != nil {
		return err
	}
	if st.Size() == 0 {
		if _, err := fmt.Fprintln(c.f, m.CSVHeader()); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(c.f, m.CSVRow())
	return err
}

func (c *CSV) Close() error { return c.f.Close() }
