package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/fmm-go/fmmcore/internal/fmm"
	"github.com/fmm-go/fmmcore/pkg/comm"
	"github.com/fmm-go/fmmcore/pkg/metrics"
	"github.com/fmm-go/fmmcore/pkg/model"
	"github.com/fmm-go/fmmcore/pkg/utils"
)

var (
	serveAddr   string
	serveBodies int
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run periodic FMM evaluations and expose Prometheus metrics",
	Long: `serve runs a background scheduler that re-evaluates a fixed random
body cloud on the configured interval and exposes the results as
Prometheus metrics (fmm_evaluation_*, fmm_request_*, fmm_let_*) on the
configured address, for watching engine behavior over many runs
instead of just one.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	binName := BinName()
	serveCmd.Example = `  # Re-evaluate every 30s (set scheduler.period_seconds in config) and
  # expose metrics on :9090
  ` + binName + ` serve --metrics-addr :9090`

	serveCmd.Flags().StringVar(&serveAddr, "metrics-addr", ":9090", "Listen address for the /metrics endpoint")
	serveCmd.Flags().IntVarP(&serveBodies, "bodies", "n", 2000, "Number of bodies in the re-evaluated body cloud")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	cfg := GetConfig()

	addr := serveAddr
	if cfg.Telemetry.MetricsAddr != "" {
		addr = cfg.Telemetry.MetricsAddr
	}

	period := cfg.Scheduler.PeriodSeconds
	if period < 1 {
		period = 60
	}

	bodies := randomBodies(serveBodies, 1)
	bounds := model.Bounds{Xmin: [3]float64{-1, -1, -1}, Xmax: [3]float64{1, 1, 1}}
	driverCfg := driverConfigFromFlags()

	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Every(period).Seconds().Do(func() {
		evaluateOnce(log, driverCfg, bodies, bounds)
	}); err != nil {
		return fmt.Errorf("failed to schedule evaluation: %w", err)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("serve: shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	log.Info("serve: re-evaluating %d bodies every %ds, metrics at http://%s/metrics", len(bodies), period, addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// evaluateOnce runs one scheduler tick: a fresh single-rank Driver over
// a copy of the seed body cloud. Evaluate sorts and writes Trg on its
// own internal copy, so the seed cloud is the same on every tick.
func evaluateOnce(log utils.Logger, driverCfg fmm.Config, bodies []model.Body, bounds model.Bounds) {
	comms := comm.NewLocalGroup(1)
	d, err := fmm.New(comms[0], driverCfg, nil)
	if err != nil {
		log.Error("serve: failed to construct driver: %v", err)
		metrics.RecordEvaluation(err)
		return
	}

	fresh := make([]model.Body, len(bodies))
	copy(fresh, bodies)

	start := time.Now()
	_, _, err = d.Evaluate(context.Background(), fresh, bounds)
	metrics.RecordPassDuration("evaluate", time.Since(start).Seconds())
	metrics.RecordEvaluation(err)
	if err != nil {
		log.Error("serve: evaluation failed: %v", err)
		return
	}
	log.Info("serve: evaluation of %d bodies completed in %s", len(fresh), time.Since(start))
}
