package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/config"
	"github.com/HydroNutri/Hardware/internal/link"
	"github.com/HydroNutri/Hardware/internal/logger"
	"github.com/HydroNutri/Hardware/internal/metrics"
	"github.com/HydroNutri/Hardware/internal/notify"
	"github.com/HydroNutri/Hardware/internal/service"
	"github.com/HydroNutri/Hardware/internal/sim"
	"github.com/HydroNutri/Hardware/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hydronutri-controller",
	Short: "Main controller for the HydroNutri aquaponics system",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the audit log as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printLogs(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the firmware version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		fmt.Println(cfg.FirmwareVersion)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting hydronutri-controller", zap.String("fw_version", cfg.FirmwareVersion))

	st, err := buildStore(cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, uplink, uplinkUp, err := buildLinks(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open links: %w", err)
	}
	defer bus.Close()
	defer uplink.Close()

	m := metrics.New()
	controller := service.New(cfg, bus, uplink, st, m, log)
	controller.SetUplinkConnected(uplinkUp)

	if cfg.Webhook.URL != "" {
		notifier := notify.NewWebhookNotifier(cfg.Webhook.URL, log.Named("webhook"))
		controller.OnAlarmTransition(notifier.Hook())
		log.Info("Alarm webhook enabled", zap.String("url", cfg.Webhook.URL))
	}

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		server := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			log.Info("Metrics endpoint listening", zap.String("addr", cfg.Metrics.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics endpoint failed", zap.Error(err))
			}
		}()
		defer server.Close()
	}

	controller.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	cancel()
	controller.Stop()
	log.Info("Controller stopped")
	return nil
}

// buildLinks opens the bus and uplink transports. With the memory transport
// the peripheral simulator and a packet-draining supervisor stand in for the
// real hardware, matching the development setup without a device attached.
// The returned flag reports whether the uplink starts out connected.
func buildLinks(ctx context.Context, cfg *config.Config, log *zap.Logger) (link.Link, link.Link, bool, error) {
	var bus link.Link
	switch cfg.Bus.Transport {
	case "mqtt":
		l, err := link.NewMQTTLink(cfg.Bus.MQTT, log.Named("bus"))
		if err != nil {
			return nil, nil, false, fmt.Errorf("bus mqtt: %w", err)
		}
		bus = l
	default:
		controllerSide, peripheralSide := link.NewMemoryPair(cfg.Bus.Buffer)
		bus = controllerSide
		simulator := sim.New(peripheralSide, log.Named("sim"))
		go simulator.Run(ctx)
	}

	var uplink link.Link
	uplinkUp := false
	switch cfg.Uplink.Transport {
	case "mqtt":
		l, err := link.NewMQTTLink(cfg.Uplink.MQTT, log.Named("uplink"))
		if err != nil {
			bus.Close()
			return nil, nil, false, fmt.Errorf("uplink mqtt: %w", err)
		}
		uplink = l
		uplinkUp = true
	default:
		controllerSide, supervisorSide := link.NewMemoryPair(cfg.Uplink.Buffer)
		uplink = controllerSide
		uplinkUp = true
		go drainUplink(ctx, supervisorSide)
	}

	return bus, uplink, uplinkUp, nil
}

func drainUplink(ctx context.Context, supervisor link.Link) {
	for {
		_, err := supervisor.Receive(ctx, time.Second)
		if errors.Is(err, context.Canceled) || errors.Is(err, link.ErrClosed) {
			return
		}
	}
}

func buildStore(cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.Path, log.Named("store"))
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		return store.NewRedisStore(client, log.Named("store")), nil
	default:
		return store.NewFileStore(cfg.Store.Path)
	}
}

func printLogs(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := zap.NewNop()
	st, err := buildStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.GetLogs(ctx)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(os.Stdout)
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return err
		}
	}
	return nil
}
