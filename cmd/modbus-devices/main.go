// cmd/modbus-devices/main.go
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/tamzrod/modbus-devices/internal/config"
	"github.com/tamzrod/modbus-devices/internal/drivers"
	"github.com/tamzrod/modbus-devices/internal/logging"
	"github.com/tamzrod/modbus-devices/internal/metrics"
	"github.com/tamzrod/modbus-devices/internal/poller"
	"github.com/tamzrod/modbus-devices/internal/schema"
	"github.com/tamzrod/modbus-devices/internal/status"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml")
	listModels := flag.Bool("list-models", false, "print the available model ids and exit")
	flag.Parse()

	if *cfgPath == "" && flag.NArg() > 0 {
		*cfgPath = flag.Arg(0)
	}

	if err := run(*cfgPath, *listModels); err != nil {
		fmt.Fprintf(os.Stderr, "modbus-devices: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string, listModels bool) error {
	if cfgPath == "" {
		return errors.New("usage: modbus-devices -config <config.yaml>")
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	log, err := logging.New(os.Stderr, cfg.Daemon.Log.Level, cfg.Daemon.Log.Format)
	if err != nil {
		return err
	}

	// --------------------
	// Models
	// --------------------

	reg := drivers.Default()
	if cfg.Daemon.ModelsDir != "" {
		ids, err := drivers.LoadDir(reg, cfg.Daemon.ModelsDir)
		if err != nil {
			return fmt.Errorf("models load failed: %w", err)
		}
		log.Info().Strs("models", ids).Str("dir", cfg.Daemon.ModelsDir).Msg("model files loaded")
	}

	if listModels {
		for _, id := range reg.IDs() {
			fmt.Println(id)
		}
		return nil
	}

	for _, d := range cfg.Devices {
		if _, err := reg.Lookup(d.Model); err != nil {
			return fmt.Errorf("device %q: %w", d.Name, err)
		}
	}

	// --------------------
	// Metrics
	// --------------------

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(promReg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if addr := cfg.Daemon.Metrics.Listen; addr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Daemon.Metrics.Path, promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info().Str("listen", addr).Str("path", cfg.Daemon.Metrics.Path).Msg("metrics endpoint")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	}

	// --------------------
	// Build per-device pipelines
	// --------------------

	links := poller.NewLinks()
	defer func() {
		if err := links.Close(); err != nil {
			log.Warn().Err(err).Msg("link close failed")
		}
	}()

	trackers := make(map[string]*status.Tracker)
	devices := make(map[string]*schema.Device)
	var coords []*poller.Coordinator

	for _, d := range cfg.Devices {
		if d.Disabled {
			log.Info().Str("device", d.Name).Msg("device disabled in config")
			continue
		}

		name := d.Name
		c, err := poller.Build(d, reg, links, log, func(key string, err error) {
			m.ObserveWrite(name, err)
		})
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("device build failed: %w", err)
		}

		tr := status.NewTracker()
		trackers[name] = tr
		devices[name] = c.Device()
		coords = append(coords, c)

		// ---- channel between poller and orchestrator ----
		out := make(chan poller.PollResult)

		g.Go(func() error {
			c.Run(gctx, out)
			return nil
		})
		g.Go(func() error {
			orchestrate(gctx, c, tr, m, out, log.With().Str("device", name).Logger())
			return nil
		})
	}

	// SIGHUP polls every device now.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				log.Info().Int("devices", len(coords)).Msg("refresh requested")
				refreshAll(coords)
			}
		}
	})

	log.Info().Int("devices", len(trackers)).Int("links", links.Len()).Msg("started")

	err = g.Wait()

	if cfg.Daemon.StatusFile != "" {
		if err := dumpStatus(cfg.Daemon.StatusFile, trackers, devices); err != nil {
			log.Warn().Err(err).Str("file", cfg.Daemon.StatusFile).Msg("status dump failed")
		}
	}

	log.Info().Msg("stopped")
	return err
}

func refreshAll(coords []*poller.Coordinator) {
	for _, c := range coords {
		c.RequestUpdate()
	}
}

// deviceStatus is the dumped form of one device: its health and, when
// known, the last values of every point.
type deviceStatus struct {
	State    string           `yaml:"state"`
	Snapshot status.Snapshot  `yaml:",inline"`
	Device   *schema.Snapshot `yaml:"device,omitempty"`
}

func dumpStatus(path string, trackers map[string]*status.Tracker, devices map[string]*schema.Device) error {
	out := make(map[string]deviceStatus, len(trackers))
	for name, tr := range trackers {
		s := tr.Snapshot()
		ds := deviceStatus{State: status.HealthName(s.Health), Snapshot: s}
		if dev, ok := devices[name]; ok {
			snap := dev.Snapshot()
			ds.Device = &snap
		}
		out[name] = ds
	}

	b, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
