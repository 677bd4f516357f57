/*
Output sinks.

Each sink receives one Measurement per successful poll and serializes it
its own way: console text, CSV rows, MQTT topics or InfluxDB points. The
protocol layer imposes no format; sinks are fan-out only and never feed
back into the session.
*/

package sink

import "pmsense"

// Sink consumes decoded measurements.
type Sink interface {
	Publish(m pmsense.Measurement) error
	Close() error
}

// Fanout publishes to several sinks in order, stopping at the first error.
type Fanout []Sink

func (f Fanout) Publish(m pmsense.Measurement) error {
	for _, s := range f {
		if err := s.Publish(m); err != nil {
			return err
		}
	}
	return nil
}

func (f Fanout) Close() error {
	var first error
	for _, s := range f {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
