package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"pmsense"
	"pmsense/sink"
)

// Config is the full file configuration. Every value can also be set from
// flags; environment variables take precedence over both, as the original
// tooling did.
type Config struct {
	Sensor   SensorConfig    `toml:"sensor"`
	MQTT     sink.MQTTConfig `toml:"-"`
	MQTTRaw  mqttConfig      `toml:"mqtt"`
	Influx   influxConfig    `toml:"influxdb"`
	Families []familyConfig  `toml:"family"`
}

type SensorConfig struct {
	Model    string `toml:"model"`
	Port     string `toml:"port"`
	Interval string `toml:"interval"`
	Timeout  string `toml:"timeout"`
	Passive  bool   `toml:"passive"`
	Baud     int    `toml:"baud"`
}

type mqttConfig struct {
	Broker string `toml:"broker"`
	Topic  string `toml:"topic"`
	User   string `toml:"user"`
	Pass   string `toml:"pass"`
}

type influxConfig struct {
	URL    string            `toml:"url"`
	Token  string            `toml:"token"`
	Org    string            `toml:"org"`
	Bucket string            `toml:"bucket"`
	Tags   map[string]string `toml:"tags"`
}

type familyConfig struct {
	Name         string        `toml:"name"`
	StartMarker  []int         `toml:"start_marker"`
	TailMarker   []int         `toml:"tail_marker"`
	FrameLen     int           `toml:"frame_len"`
	LengthField  bool          `toml:"length_field"`
	LittleEndian bool          `toml:"little_endian"`
	Checksum     string        `toml:"checksum"`
	SumFrom      int           `toml:"sum_from"`
	IDOffset     int           `toml:"id_offset"`
	ZeroIsWarmup bool          `toml:"zero_is_warmup"`
	Fields       []fieldConfig `toml:"field"`
}

type fieldConfig struct {
	Channel string  `toml:"channel"`
	Offset  int     `toml:"offset"`
	Scale   float64 `toml:"scale"`
	Unit    string  `toml:"unit"`
}

func defaultConfig() Config {
	return Config{
		Sensor: SensorConfig{
			Model:    "PMSx003",
			Port:     "/dev/ttyUSB0",
			Interval: "60s",
			Timeout:  "10s",
			Passive:  true,
		},
		MQTTRaw: mqttConfig{Broker: "tcp://mqtt.eclipse.org:1883", Topic: "homie/test"},
		Influx:  influxConfig{URL: "http://influxdb:8086", Bucket: "homie", Tags: map[string]string{"location": "test"}},
	}
}

// loadConfig reads the optional TOML file and applies environment
// overrides. Custom sensor families from the file are registered so the
// model flag can name them.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %v: %w", path, err)
		}
	}
	applyEnv(&cfg)
	cfg.MQTT = sink.MQTTConfig{
		Broker:   cfg.MQTTRaw.Broker,
		Topic:    cfg.MQTTRaw.Topic,
		Username: cfg.MQTTRaw.User,
		Password: cfg.MQTTRaw.Pass,
	}
	for _, fc := range cfg.Families {
		f, err := fc.toFamily()
		if err != nil {
			return Config{}, err
		}
		if err := pmsense.Register(f); err != nil {
			return Config{}, fmt.Errorf("config family %v: %w", fc.Name, err)
		}
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envStr := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	envStr("PMS_SENSOR", &cfg.Sensor.Model)
	envStr("PMS_SERIAL", &cfg.Sensor.Port)
	envStr("PMS_INTERVAL", &cfg.Sensor.Interval)
	envStr("PMS_MQTT_HOST", &cfg.MQTTRaw.Broker)
	envStr("PMS_MQTT_TOPIC", &cfg.MQTTRaw.Topic)
	envStr("PMS_MQTT_USER", &cfg.MQTTRaw.User)
	envStr("PMS_MQTT_PASS", &cfg.MQTTRaw.Pass)
	envStr("PMS_INFLUX_HOST", &cfg.Influx.URL)
	envStr("PMS_INFLUX_TOKEN", &cfg.Influx.Token)
	envStr("PMS_INFLUX_ORG", &cfg.Influx.Org)
	envStr("PMS_INFLUX_DB", &cfg.Influx.Bucket)
}

// interval and timeout as durations, with plain-second compatibility
// ("60" means 60s, like the original flags).
func parseInterval(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if !strings.ContainsAny(s, "smh") {
		s += "s"
	}
	return time.ParseDuration(s)
}

func intsToBytes(vals []int) ([]byte, error) {
	b := make([]byte, len(vals))
	for i, v := range vals {
		if v < 0 || v > 0xFF {
			return nil, fmt.Errorf("byte value %d out of range", v)
		}
		b[i] = byte(v)
	}
	return b, nil
}

func (fc familyConfig) toFamily() (pmsense.SensorFamily, error) {
	marker, err := intsToBytes(fc.StartMarker)
	if err != nil {
		return pmsense.SensorFamily{}, fmt.Errorf("family %v start_marker: %w", fc.Name, err)
	}
	tail, err := intsToBytes(fc.TailMarker)
	if err != nil {
		return pmsense.SensorFamily{}, fmt.Errorf("family %v tail_marker: %w", fc.Name, err)
	}
	var kind pmsense.ChecksumKind
	switch strings.ToLower(fc.Checksum) {
	case "", "sum16be":
		kind = pmsense.ChecksumSum16BE
	case "sum8":
		kind = pmsense.ChecksumSum8
	case "xor8":
		kind = pmsense.ChecksumXor8
	default:
		return pmsense.SensorFamily{}, fmt.Errorf("family %v: unknown checksum kind %q", fc.Name, fc.Checksum)
	}
	fields := make([]pmsense.FieldSpec, len(fc.Fields))
	for i, f := range fc.Fields {
		scale := f.Scale
		if scale == 0 {
			scale = 1
		}
		unit := f.Unit
		if unit == "" {
			unit = pmsense.UnitUgm3
		}
		fields[i] = pmsense.FieldSpec{Channel: f.Channel, Offset: f.Offset, Scale: scale, Unit: unit}
	}
	idOffset := fc.IDOffset
	if idOffset == 0 {
		idOffset = -1 // offset 0 is inside the marker, so 0 can mean unset
	}
	return pmsense.SensorFamily{
		Name:         fc.Name,
		StartMarker:  marker,
		TailMarker:   tail,
		FrameLen:     fc.FrameLen,
		LengthField:  fc.LengthField,
		LittleEndian: fc.LittleEndian,
		Checksum:     kind,
		SumFrom:      fc.SumFrom,
		Fields:       fields,
		IDOffset:     idOffset,
		ZeroIsWarmup: fc.ZeroIsWarmup,
	}, nil
}
