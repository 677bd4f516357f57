package sink

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"

	"pmsense"
)

// InfluxConfig is the server connection and point layout.
type InfluxConfig struct {
	URL    string // e.g. http://influxdb:8086
	Token  string
	Org    string
	Bucket string
	Tags   map[string]string // static tags added to every point, e.g. location
}

// Influx writes one point per channel: the channel name is the measurement,
// the value is a single "value" field. Matches what the bridge produces
// from the MQTT topic tree, so both paths land in the same schema.
type Influx struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	tags   map[string]string
	log    zerolog.Logger
}

const writeTimeout = 10 * time.Second

// NewInflux connects to the server. The bucket must exist.
func NewInflux(cfg InfluxConfig, log zerolog.Logger) (*Influx, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if _, err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping %v: %w", cfg.URL, err)
	}
	log.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("influxdb connected")
	return &Influx{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		tags:   cfg.Tags,
		log:    log,
	}, nil
}

func (i *Influx) Publish(m pmsense.Measurement) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	for _, ch := range m.Channels {
		pt := influxdb2.NewPoint(ch.Channel, i.tags,
			map[string]interface{}{"value": ch.Value}, m.Time)
		if err := i.write.WritePoint(ctx, pt); err != nil {
			return fmt.Errorf("influxdb write %v: %w", ch.Channel, err)
		}
	}
	return nil
}

// PublishBridge writes one bridged MQTT value as a point, tagged with its
// origin location.
func (i *Influx) PublishBridge(data BridgeData) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	tags := map[string]string{}
	for k, v := range i.tags {
		tags[k] = v
	}
	tags["location"] = data.Location
	pt := influxdb2.NewPoint(data.Measurement, tags,
		map[string]interface{}{"value": data.Value}, data.Time)
	if err := i.write.WritePoint(ctx, pt); err != nil {
		return fmt.Errorf("influxdb write %v: %w", data.Measurement, err)
	}
	return nil
}

func (i *Influx) Close() error {
	i.client.Close()
	return nil
}
