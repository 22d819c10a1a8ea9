package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/ble-peripheral/eventhub"
	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/peripheral"
)

type options struct {
	host         string
	name         string
	interval     time.Duration
	partialReads bool
	eventsAddr   string
	logLevel     string
	hciDev       int
	realistic    bool
	readEvery    time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.host, "host", "sim", "BLE host: sim (simulated Android phone) or hci (local controller, linux)")
	flag.StringVar(&opts.name, "name", peripheral.AdvertisingName, "Advertised device name")
	flag.DurationVar(&opts.interval, "interval", time.Second, "Characteristic refresh interval")
	flag.BoolVar(&opts.partialReads, "partial-reads", false, "Serve value[offset:] for nonzero read offsets")
	flag.StringVar(&opts.eventsAddr, "events-addr", "", "Serve the WebSocket event feed on this address, e.g. :8080")
	flag.StringVar(&opts.logLevel, "log-level", "", "TRACE, DEBUG, INFO, WARN or ERROR (default $LOG_LEVEL or INFO)")
	flag.IntVar(&opts.hciDev, "hci-dev", -1, "HCI device id for -host hci")
	flag.BoolVar(&opts.realistic, "realistic", false, "Simulate radio delays in -host sim")
	flag.DurationVar(&opts.readEvery, "read-every", 3*time.Second, "How often the simulated central reads in -host sim")
	flag.Parse()

	level := opts.logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	logger.SetLevel(logger.ParseLevel(level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "ble-peripheral: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	h, err := openHost(ctx, opts)
	if err != nil {
		return err
	}
	defer h.close()

	hub := eventhub.NewHub(logCallback{})
	cfg := peripheral.DefaultConfig()
	cfg.Name = opts.name
	cfg.UpdateInterval = opts.interval
	cfg.PartialReads = opts.partialReads

	m, err := peripheral.New(h.host, hub, cfg)
	if err != nil {
		return err
	}
	defer m.Close()
	hub.SetSnapshotFunc(m.Snapshot)

	if opts.eventsAddr != "" {
		srv := &http.Server{Addr: opts.eventsAddr, Handler: hub.Handler()}
		go func() {
			logger.Info("Main", "🌐 Event feed on ws://%s/events", opts.eventsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Main", "Event feed stopped: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
			hub.Close()
		}()
	}

	if err := m.SetupProfile(); err != nil {
		return err
	}
	m.StartAdvertising()

	<-ctx.Done()
	logger.Info("Main", "Shutting down")
	return nil
}

// logCallback prints lifecycle callbacks at info level
type logCallback struct{}

func (logCallback) OnAdvertisingStarted() {
	logger.Info("Main", "✅ Advertising")
}

func (logCallback) OnAdvertisingFailed(code int) {
	logger.Warn("Main", "⚠️  Advertising failed: %s", peripheral.AdvertiseErrorString(code))
}

func (logCallback) OnAdvertisingStopped() {
	logger.Info("Main", "Advertising stopped")
}

func (logCallback) OnCentralConnected(d peripheral.Device) {
	logger.Info("Main", "📱 %s connected", d.Address)
}

func (logCallback) OnCentralDisconnected(d peripheral.Device) {
	logger.Info("Main", "📱 %s disconnected", d.Address)
}
