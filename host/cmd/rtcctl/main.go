// Command rtcctl talks to a battery-backed RTC board over its serial link.
//
// With a command on the command line it runs that command and exits;
// otherwise it starts an interactive shell. Alarm events are printed as
// they arrive and, with --mqtt-url, published to a broker.
package main

import (
	"context"
	goflag "flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"vbatrtc/core"
	"vbatrtc/host/bridge"
	"vbatrtc/host/config"
	"vbatrtc/host/mcu"
	"vbatrtc/sim"
)

const envPrefix = "RTCCTL_"

var (
	configPath = flag.String("config", config.DefaultPath(), "YAML file with defaults")
	device     = flag.StringP("device", "d", "", "Serial device path")
	baud       = flag.Int("baud", 0, "Baud rate (ignored for USB CDC)")
	timeout    = flag.Duration("timeout", 0, "Response timeout")
	useSim     = flag.Bool("sim", false, "Talk to an in-process simulated board")
	simTick    = flag.Duration("sim-tick", time.Second, "Wall time per simulated second")
	mqttURL    = flag.String("mqtt-url", "", "Publish alarm events to this broker, mqtt[s]://host[:port]/topic")
	mqttTopic  = flag.String("mqtt-topic", "", "Topic for alarm events when the URL has none")
	noColor    = flag.Bool("no-color", false, "Disable colored output")

	hiddenFlags = []string{
		"alsologtostderr",
		"log_backtrace_at",
		"log_dir",
		"logtostderr",
		"stderrthreshold",
		"v",
		"vmodule",
	}
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] [command [args...]]\n\nFlags:\n", os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr)
	newShell(nil, os.Stderr).run([]string{"help"})
}

func initFlags() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	for _, f := range hiddenFlags {
		flag.CommandLine.MarkHidden(f)
	}
	flag.Usage = usage
}

// loadConfig merges the config file with the flags given on the command
// line or through the environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if flag.CommandLine.Changed("device") {
		cfg.Device = *device
	}
	if flag.CommandLine.Changed("baud") {
		cfg.Baud = *baud
	}
	if flag.CommandLine.Changed("timeout") {
		cfg.Timeout = *timeout
	}
	if flag.CommandLine.Changed("sim") {
		cfg.Sim = *useSim
	}
	if flag.CommandLine.Changed("mqtt-url") {
		cfg.MQTT.URL = *mqttURL
	}
	if flag.CommandLine.Changed("mqtt-topic") {
		cfg.MQTT.Topic = *mqttTopic
	}
	return cfg, nil
}

// connect opens the board, or starts a simulated one whose clock follows
// the host clock.
func connect(ctx context.Context, cfg *config.Config) (*mcu.MCU, error) {
	if !cfg.Sim {
		glog.Infof("connecting to %s", cfg.Device)
		m, err := mcu.Connect(cfg.Serial())
		return m, errors.Trace(err)
	}

	dev, err := sim.NewDevice(core.HighDensity, uint32(time.Now().Unix()))
	if err != nil {
		return nil, errors.Annotatef(err, "simulated board")
	}
	hostEnd, devEnd := net.Pipe()
	go func() {
		if err := dev.Serve(ctx, devEnd, *simTick); err != nil && err != context.Canceled {
			glog.Errorf("simulated board stopped: %v", err)
		}
		devEnd.Close()
	}()
	glog.Infof("using a simulated board")
	return mcu.New(hostEnd), nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if *noColor {
		color.NoColor = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer m.Close()
	m.SetTimeout(cfg.Timeout)

	var out io.Writer = color.Output
	sh := newShell(m, out)

	var pub *bridge.Bridge
	if cfg.MQTT.URL != "" {
		pub, err = bridge.Dial(bridge.Options{
			URL:      cfg.MQTT.URL,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Device:   cfg.Device,
		})
		if err != nil {
			return errors.Trace(err)
		}
		defer pub.Close()
		glog.Infof("publishing alarms to %s", pub.Topic())
	}
	m.OnAlarm(func(epoch uint32) {
		sh.alarm(epoch)
		if pub != nil {
			if err := pub.PublishAlarm(epoch); err != nil {
				glog.Errorf("alarm %d: %v", epoch, err)
			}
		}
	})

	if flag.NArg() > 0 {
		// The first ^C ends watch, a second one the process.
		interrupted := make(chan struct{})
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt)
		go func() {
			<-sigs
			close(interrupted)
			signal.Stop(sigs)
		}()
		sh.done = interrupted
		return errors.Trace(sh.run(flag.Args()))
	}
	fmt.Fprintln(out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	return sh.interact(os.Stdin, true)
}

func main() {
	initFlags()
	flag.Parse()
	if err := setFromEnv(flag.CommandLine, envPrefix, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(2)
	}
	defer glog.Flush()

	if err := run(); err != nil {
		glog.Infof("Error: %+v", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		glog.Flush()
		os.Exit(1)
	}
}
