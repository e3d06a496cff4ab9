package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/pavanmanishd/memkit/blockpool"
	"github.com/pavanmanishd/memkit/internal/workload"
)

const defaultInterval = 5 * time.Second

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Run the workload in rounds and expose pool metrics over HTTP",
	Flags:  append([]cli.Flag{metricsAddrFlag, intervalFlag}, workloadFlags...),
	Action: serveWorkload,
}

// metricsHandler serves the pool collector next to the Go runtime collectors.
func metricsHandler(pools prometheus.Collector) (http.Handler, error) {
	promReg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		pools,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := promReg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering collector")
		}
	}
	return promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}), nil
}

// runRounds repeats the workload until ctx is done. Pool statistics are
// published after every round from this goroutine, so scrapes never touch
// pools while the workload is using them.
func runRounds(ctx context.Context, r *workload.Runner, pub *blockpool.Published, interval time.Duration, log *slog.Logger) error {
	pub.Publish(r.Registry().Snapshot())
	for round := 1; ; round++ {
		if _, err := r.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		pub.Publish(r.Registry().Snapshot())
		log.Debug("workload round complete", slog.Int("round", round))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func serveWorkload(c *cli.Context) error {
	log := newLogger(c)
	r, err := newRunner(c, log)
	if err != nil {
		return err
	}
	var pub blockpool.Published
	handler, err := metricsHandler(pub.Collector())
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              c.String(metricsAddrFlag.Name),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("serving metrics", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "metrics server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return runRounds(ctx, r, &pub, c.Duration(intervalFlag.Name), log)
	})
	return g.Wait()
}
