package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"

	"multicam/pkg/config"
	"multicam/pkg/drivers/simulator"
	"multicam/pkg/history"
	"multicam/pkg/notify"
	"multicam/pkg/server"
)

func run(c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	log.Info("Multicam capture server")

	settings, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %v", err)
	}

	db, err := bolt.Open(c.String("db"), 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	store, err := history.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create history store: %v", err)
	}

	opts := server.Options{
		Token:   c.String("token"),
		History: store,
	}

	if settings.MQTT.Broker != "" {
		publisher, err := notify.NewPublisher(settings.MQTT, log.WithField("component", "notify"))
		if err != nil {
			return fmt.Errorf("failed to create MQTT publisher: %v", err)
		}
		defer publisher.Close()
		opts.Notifier = publisher
	}

	// The simulated fleet stands in for a real device bridge; any
	// capture.DeviceBridge implementation can be wired here instead.
	serials := make([]string, c.Int("devices"))
	for i := range serials {
		serials[i] = fmt.Sprintf("SIM%04d", i+1)
	}
	bridge := simulator.NewBridge(serials, simulator.SampleImage(), settings.CommandTimeout(), log.WithField("component", "simulator"))

	srv := server.New(settings, bridge, opts, log.WithField("component", "server"))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.Int("port")),
		Handler: srv.AddRoutes(),
	}

	// Channel to listen for interrupt or terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		log.Debugf("Server started on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", httpSrv.Addr, err)
		}
		wg.Done()
	}()

	<-ctx.Done()

	log.Info("Shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx2); err != nil {
		return fmt.Errorf("server forced to shutdown: %v", err)
	}

	wg.Wait()
	log.Info("Server stopped")
	return nil
}

func main() {
	app := cli.App{
		Name:  "multicam",
		Usage: "Synchronized multi-device photo capture server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "config.yaml",
				EnvVars: []string{"CAMERA_CONFIG_PATH"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				Value:   8080,
				EnvVars: []string{"MULTICAM_PORT"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path to the capture history database",
				Value:   "multicam.db",
				EnvVars: []string{"MULTICAM_DB"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token required on capture endpoints",
				EnvVars: []string{"CAMERA_API_TOKEN"},
			},
			&cli.IntFlag{
				Name:    "devices",
				Usage:   "Number of simulated devices",
				Value:   2,
				EnvVars: []string{"MULTICAM_DEVICES"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				Value:   false,
				EnvVars: []string{"DEBUG"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
