/*
pmsense reads particulate matter sensors over a serial link and forwards
measurements to a console, CSV file, MQTT broker or InfluxDB server.

	pmsense [global flags] <command> [command flags]

	serial     print measurements to stdout
	csv        append measurements to a CSV file
	mqtt       publish measurements to an MQTT broker
	influxdb   write measurements to an InfluxDB server
	bridge     forward MQTT sensor topics into InfluxDB
	families   list the supported sensor families

Global flags select the sensor model, serial port and poll interval; a TOML
config file can provide everything including custom sensor family
definitions. PMS_* environment variables override both.
*/

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pmsense"
	"pmsense/serialport"
	"pmsense/sink"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pmsense: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("pmsense", flag.ExitOnError)
	configPath := global.String("config", "", "TOML config file")
	model := global.String("m", "", "sensor model (overrides config)")
	port := global.String("s", "", "serial port (overrides config)")
	interval := global.String("n", "", "seconds or duration between measurements")
	debug := global.Bool("debug", false, "verbose logging")
	global.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: pmsense [flags] serial|csv|mqtt|influxdb|bridge|families")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *model != "" {
		cfg.Sensor.Model = *model
	}
	if *port != "" {
		cfg.Sensor.Port = *port
	}
	if *interval != "" {
		cfg.Sensor.Interval = *interval
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "families":
		fmt.Println(strings.Join(pmsense.Families(), "\n"))
		return nil
	case "serial":
		fs := flag.NewFlagSet("serial", flag.ExitOnError)
		format := fs.String("f", sink.FormatPM, "output format: pm, num, raw, cf or csv")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return pollLoop(cfg, log, sink.NewConsole(os.Stdout, *format))
	case "csv":
		fs := flag.NewFlagSet("csv", flag.ExitOnError)
		overwrite := fs.Bool("overwrite", false, "truncate the file instead of appending")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		path := fs.Arg(0)
		if path == "" {
			path = time.Now().Format("2006-01-02") + "_pmsense.csv"
		}
		csv, err := sink.NewCSV(path, *overwrite)
		if err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("capturing measurements")
		return pollLoop(cfg, log, csv)
	case "mqtt":
		pub, err := sink.NewMQTT(cfg.MQTT, log)
		if err != nil {
			return err
		}
		return pollLoop(cfg, log, pub)
	case "influxdb":
		db, err := sink.NewInflux(influxFromConfig(cfg), log)
		if err != nil {
			return err
		}
		return pollLoop(cfg, log, db)
	case "bridge":
		return bridge(cfg, log)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func influxFromConfig(cfg Config) sink.InfluxConfig {
	return sink.InfluxConfig{
		URL:    cfg.Influx.URL,
		Token:  cfg.Influx.Token,
		Org:    cfg.Influx.Org,
		Bucket: cfg.Influx.Bucket,
		Tags:   cfg.Influx.Tags,
	}
}

// pollLoop reads the sensor on the configured interval and fans out to the
// sink until interrupted.
func pollLoop(cfg Config, log zerolog.Logger, out sink.Sink) error {
	defer out.Close()

	every, err := parseInterval(cfg.Sensor.Interval)
	if err != nil {
		return fmt.Errorf("interval: %w", err)
	}
	timeout, err := parseInterval(cfg.Sensor.Timeout)
	if err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	tr, err := serialport.Open(cfg.Sensor.Port, serialport.Mode{BaudRate: cfg.Sensor.Baud})
	if err != nil {
		return err
	}
	session, err := pmsense.NewSession(cfg.Sensor.Model, tr)
	if err != nil {
		tr.Close()
		return err
	}
	defer session.Close()

	log.Info().Str("model", session.Family().Name).Str("port", cfg.Sensor.Port).
		Dur("interval", every).Msg("reading sensor")

	if err := session.Wake(); err != nil {
		return err
	}
	if cfg.Sensor.Passive {
		if err := session.SetPassiveMode(); err != nil {
			return err
		}
	}
	defer session.Sleep()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	for {
		m, err := session.RequestMeasurement(timeout)
		switch {
		case err == nil:
			log.Debug().Str("sensor", m.Sensor).Msg(m.String())
			if perr := out.Publish(m); perr != nil {
				return perr
			}
		case errors.Is(err, pmsense.ErrTimeout):
			// recoverable; sensor may be warming up or wedged briefly
			log.Warn().Msg("no valid frame within timeout")
		default:
			return err
		}

		select {
		case <-stop:
			log.Info().Msg("stopping")
			return nil
		case <-time.After(every):
		}
	}
}

// bridge subscribes to the MQTT topic tree and forwards every sensor value
// into InfluxDB, the standing service mode that needs no serial hardware.
func bridge(cfg Config, log zerolog.Logger) error {
	db, err := sink.NewInflux(influxFromConfig(cfg), log)
	if err != nil {
		return err
	}
	defer db.Close()

	mqttCfg := cfg.MQTT
	if !strings.Contains(mqttCfg.Topic, "+") {
		// subscribe the whole tree under the root segment,
		// "homie/test" -> "homie/+/+/+"
		root := strings.SplitN(mqttCfg.Topic, "/", 2)[0]
		mqttCfg.Topic = root + "/+/+/+"
	}
	sub, err := sink.NewMQTTSubscriber(mqttCfg, log, func(data sink.BridgeData) {
		if err := db.PublishBridge(data); err != nil {
			log.Error().Err(err).Msg("bridge write failed")
		}
	})
	if err != nil {
		return err
	}
	defer sub.Close()

	log.Info().Str("topic", mqttCfg.Topic).Msg("bridging MQTT to InfluxDB")
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("stopping")
	return nil
}
