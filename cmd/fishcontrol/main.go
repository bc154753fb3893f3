// FishControl Core - Actuator Control System
//
// This is the main entry point for the FishControl core. It drives pumps and
// valves on an embedded controller over WiFi, walking declarative tasks on a
// fixed tick and pushing every command through a conflict-aware dispatch
// pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/fishcontrol/fishcontrol-core/migrations"

	"github.com/fishcontrol/fishcontrol-core/internal/api"
	"github.com/fishcontrol/fishcontrol-core/internal/command"
	"github.com/fishcontrol/fishcontrol-core/internal/device"
	"github.com/fishcontrol/fishcontrol-core/internal/events"
	"github.com/fishcontrol/fishcontrol-core/internal/execution"
	"github.com/fishcontrol/fishcontrol-core/internal/infrastructure/config"
	"github.com/fishcontrol/fishcontrol-core/internal/infrastructure/database"
	"github.com/fishcontrol/fishcontrol-core/internal/infrastructure/influxdb"
	"github.com/fishcontrol/fishcontrol-core/internal/infrastructure/logging"
	"github.com/fishcontrol/fishcontrol-core/internal/infrastructure/mqtt"
	"github.com/fishcontrol/fishcontrol-core/internal/task"
	"github.com/fishcontrol/fishcontrol-core/internal/transport"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit // Composition root: linear wiring of every subsystem
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting FishControl core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device catalogue
	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device catalogue: %w", refreshErr)
	}
	log.Info("device catalogue loaded", "devices", deviceRegistry.ActuatorCount())

	// Task store
	taskRegistry := task.NewRegistry(task.NewSQLiteRepository(db.DB))
	taskRegistry.SetLogger(log)
	if refreshErr := taskRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading task store: %w", refreshErr)
	}
	log.Info("task store loaded", "tasks", taskRegistry.TaskCount())

	// Runtime state store, seeded from the enabled catalogue
	states := device.NewStateStore(device.StateStoreConfig{
		LockTTL: time.Duration(cfg.Scheduler.LockTTL) * time.Millisecond,
	})
	states.SetLogger(log)
	enabled, err := deviceRegistry.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("listing enabled devices: %w", err)
	}
	states.Seed(enabled)
	states.Start(ctx)
	defer func() {
		log.Info("stopping state store")
		states.Stop()
	}()

	// Controller transport
	baseURL := cfg.Controller.BaseURL
	if cfg.Controller.Discovery.Enabled {
		found, discErr := transport.Discover(ctx, transport.DiscoveryConfig{
			Subnet:       cfg.Controller.Discovery.Subnet,
			FirstHost:    cfg.Controller.Discovery.FirstHost,
			LastHost:     cfg.Controller.Discovery.LastHost,
			ProbeTimeout: time.Duration(cfg.Controller.Discovery.ProbeTimeout) * time.Millisecond,
		}, log)
		if discErr != nil {
			log.Warn("controller discovery failed, using configured address",
				"error", discErr,
				"base_url", baseURL,
			)
		} else {
			log.Info("controller discovered", "base_url", found)
			baseURL = found
		}
	}

	client := transport.NewClient(transport.ClientConfig{
		BaseURL:     baseURL,
		SendTimeout: time.Duration(cfg.Controller.SendTimeout) * time.Second,
	})
	client.SetLogger(log)
	log.Info("controller transport ready", "base_url", baseURL)

	// Controller health monitor (optional)
	var monitor *transport.Monitor
	if cfg.Controller.ProbeInterval > 0 {
		monitor = transport.NewMonitor(client, states, transport.MonitorConfig{
			ProbeInterval: time.Duration(cfg.Controller.ProbeInterval) * time.Second,
		})
		monitor.SetLogger(log)
		monitor.Start(ctx)
		defer func() {
			log.Info("stopping controller monitor")
			monitor.Stop()
		}()
	} else {
		log.Info("controller monitor disabled")
		// No monitor means no offline detection; assume reachable so
		// commands are not rejected as device_offline.
		states.SetAllOnline(true)
	}

	// Command pipeline
	history := command.NewHistory(0)
	detector := command.NewDetector(states, history, command.DetectorConfig{
		ConflictWindow: time.Duration(cfg.Scheduler.ConflictWindow) * time.Millisecond,
		Limits: command.Limits{
			MaxPower:     float64(cfg.Scheduler.MaxPower),
			MaxDuration:  time.Duration(cfg.Scheduler.MaxActionDuration) * time.Second,
			MaxActivePWM: cfg.Scheduler.MaxActivePWM,
		},
	})
	detector.SetLogger(log)

	dispatcher := command.NewDispatcher(states, detector, history, client, command.DispatcherConfig{
		QueueSize: cfg.Scheduler.DispatchQueueSize,
		LockTTL:   time.Duration(cfg.Scheduler.LockTTL) * time.Millisecond,
	})
	dispatcher.SetLogger(log)
	dispatcher.Start(ctx)
	defer func() {
		log.Info("stopping dispatcher")
		dispatcher.Stop()
	}()

	// Execution scheduler
	scheduler := execution.NewScheduler(dispatcher, execution.SchedulerConfig{
		TickInterval: time.Duration(cfg.Scheduler.TickInterval) * time.Millisecond,
	})
	scheduler.SetLogger(log)
	defer func() {
		log.Info("stopping scheduler")
		scheduler.Stop()
	}()

	// Event fan-out: state store, dispatcher and scheduler all notify it
	fanout := events.NewFanout()
	fanout.SetLogger(log)
	states.SetObserver(fanout)
	dispatcher.SetEvents(fanout)
	scheduler.SetEvents(fanout)

	// MQTT bridge (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		fanout.SetPublisher(mqttClient)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB telemetry (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		fanout.SetWriter(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// API server; its WebSocket hub completes the fan-out wiring
	apiServer, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Devices:    deviceRegistry,
		Tasks:      taskRegistry,
		States:     states,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Monitor:    monitor,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	fanout.SetBroadcaster(apiServer.Hub())

	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB, MQTT, scheduler, dispatcher, monitor,
	// state store, database.

	log.Info("FishControl core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FISHCONTROL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FISHCONTROL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
