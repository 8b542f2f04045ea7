// Command estop-monitor watches an emergency stop switch on a GPIO pin and
// halts or cancels the print on the host when it is pressed.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/estop-monitor/internal/config"
	"github.com/sweeney/estop-monitor/internal/estop"
	"github.com/sweeney/estop-monitor/internal/gpio"
	"github.com/sweeney/estop-monitor/internal/logic"
	"github.com/sweeney/estop-monitor/internal/mqtt"
	"github.com/sweeney/estop-monitor/internal/serial"
	"github.com/sweeney/estop-monitor/internal/status"
	"github.com/sweeney/estop-monitor/internal/web"
)

// options holds the command-line overrides for the config file.
type options struct {
	configPath string
	pin        int
	broker     string
	httpAddr   string
	serialDev  string
	backend    string
}

func main() {
	if err := newRootCommand(&options{}).Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "estop-monitor",
		Short:         "Emergency stop switch monitor",
		Long:          "Watches an emergency stop switch on a GPIO pin and halts or cancels the print on the host over MQTT.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "/etc/estop-monitor.yaml", "YAML config file")
	flags.IntVar(&opts.pin, "pin", logic.UnconfiguredPin, "BCM pin number of the switch (-1 disables)")
	flags.StringVar(&opts.broker, "broker", "", "MQTT broker address")
	flags.StringVar(&opts.httpAddr, "http", "", `HTTP status address ("off" disables)`)
	flags.StringVar(&opts.serialDev, "serial", "", "serial device for direct machine commands")
	flags.StringVar(&opts.backend, "backend", "", "GPIO backend (gpiocdev or periph)")

	cmd.AddCommand(newPrintStateCommand(opts))
	return cmd
}

func newPrintStateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "print-state",
		Short: "Print the current switch level and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			pinCfg, err := cfg.Settings.PinConfig()
			if err != nil {
				return err
			}
			if !pinCfg.Configured() {
				return fmt.Errorf("pin not configured")
			}
			driver, err := newDriver(cfg.GPIO)
			if err != nil {
				return err
			}
			level, err := gpio.Sample(driver, gpio.WatchConfig{Pin: pinCfg.Pin, Pull: pinCfg.EffectivePull()})
			if err != nil {
				return fmt.Errorf("read gpio: %w", err)
			}
			printState(cmd.OutOrStdout(), pinCfg, level)
			return nil
		},
	}
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("pin") {
		cfg.Settings.Pin = opts.pin
	}
	if flags.Changed("broker") {
		cfg.MQTT.Broker = opts.broker
	}
	if flags.Changed("http") {
		cfg.HTTP = opts.httpAddr
		if cfg.HTTP == "off" {
			cfg.HTTP = ""
		}
	}
	if flags.Changed("serial") {
		cfg.Serial.Device = opts.serialDev
	}
	if flags.Changed("backend") {
		cfg.GPIO.Backend = opts.backend
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newDriver(cfg config.GPIOConfig) (gpio.Driver, error) {
	switch cfg.Backend {
	case "periph":
		d, err := gpio.NewPeriphDriver()
		if err != nil {
			return nil, fmt.Errorf("init gpio: %w", err)
		}
		return d, nil
	default:
		return gpio.NewRealDriver(cfg.Chip), nil
	}
}

func printState(w io.Writer, cfg logic.PinConfig, level logic.Level) {
	state := "at rest"
	if level == cfg.Polarity.ActiveLevel() {
		state = "TRIGGERED"
	}
	fmt.Fprintf(w, "GPIO %d: %s (%s, %s)\n", cfg.Pin, level, cfg.Polarity, state)
}

func run(cfg *config.Config) error {
	driver, err := newDriver(cfg.GPIO)
	if err != nil {
		return err
	}

	// Initialize MQTT
	client := mqtt.NewRealClient(mqtt.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Prefix:   cfg.MQTT.TopicPrefix,
	})
	defer client.Close()

	var commander estop.Commander = client
	if cfg.Serial.Device != "" {
		port, err := serial.Open(serial.Config{
			Device:        cfg.Serial.Device,
			Baud:          cfg.Serial.Baud,
			CancelCommand: cfg.Serial.CancelCommand,
		})
		if err != nil {
			return fmt.Errorf("init serial: %w", err)
		}
		defer port.Close()
		commander = estop.Fanout{client, port}
	}

	ctrl := estop.New(estop.Options{
		Driver:         driver,
		State:          client,
		Commander:      commander,
		Notifier:       client,
		QuietWindow:    cfg.GPIO.Debounce,
		DriverDebounce: cfg.GPIO.HardwareDebounce,
	})
	client.Bind(ctrl)

	store := config.NewStore(cfg.Settings, cfg.SettingsFile)
	store.OnSave(ctrl.Reconfigure)

	pinCfg, err := store.PinConfig()
	if err != nil {
		return err
	}
	ctrl.Start(pinCfg)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Backend:            cfg.GPIO.Backend,
		DebounceMs:         cfg.GPIO.Debounce.Milliseconds(),
		HardwareDebounceMs: cfg.GPIO.HardwareDebounce.Milliseconds(),
		HeartbeatMs:        cfg.Heartbeat.Milliseconds(),
		Broker:             cfg.MQTT.Broker,
		HTTPAddr:           cfg.HTTP,
		SerialDevice:       cfg.Serial.Device,
	})
	refresh(tracker, ctrl, client)

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, store)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	log.Printf("started: backend=%s pin=%d debounce=%v broker=%s heartbeat=%v",
		cfg.GPIO.Backend, pinCfg.Pin, cfg.GPIO.Debounce, cfg.MQTT.Broker, cfg.Heartbeat)

	interval := cfg.StatusInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, client, tracker, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

// runLoop refreshes the status tracker, publishes heartbeats, and shuts the
// controller down on a signal.
func runLoop(ctrl *estop.Controller, client mqtt.Client, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	hb := logic.NewHeartbeat(now())

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			ctrl.Shutdown()

			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				refresh(tracker, ctrl, client)
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := client.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()

			if hbData := hb.Check(t, heartbeat); hbData != nil {
				st := ctrl.Status()
				log.Printf("heartbeat: uptime=%v lifecycle=%s edges=%d halts=%d cancels=%d",
					hbData.Uptime, st.Lifecycle, st.Counts.Edges, st.Counts.Halts, st.Counts.Cancels)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					refresh(tracker, ctrl, client)
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := client.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			if tracker != nil {
				refresh(tracker, ctrl, client)
			}
		}
	}
}

func refresh(tracker *status.Tracker, ctrl *estop.Controller, client mqtt.Client) {
	tracker.Update(ctrl.Status(), client.ExecutionState())
	tracker.SetMQTTConnected(client.IsConnected())
}
