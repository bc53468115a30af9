package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/deps"
	"github.com/vango-dev/reactor/pkg/reactor"
)

type benchConfig struct {
	Instances int
	Updates   int
	Effects   bool
}

type benchResult struct {
	Config      benchConfig
	Flush       *tachymeter.Metrics
	Evaluations uint64
	Effects     uint64
	Allocated   uint64
	Elapsed     time.Duration
}

func benchCmd() *cobra.Command {
	var cfg benchConfig

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure tick latency",
		Long: `Mount counter instances, then repeatedly update every instance
and time the Flush that settles them.

Examples:
  reactor bench
  reactor bench --instances 10000 --updates 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Instances <= 0 || cfg.Updates <= 0 {
				return errors.New("R041").
					WithDetail(fmt.Sprintf("Got --instances=%d --updates=%d; both must be positive.", cfg.Instances, cfg.Updates))
			}
			res, err := runBench(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			renderBench(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&cfg.Instances, "instances", "n", 1000, "Number of mounted instances")
	cmd.Flags().IntVarP(&cfg.Updates, "updates", "u", 100, "Number of update rounds")
	cmd.Flags().BoolVar(&cfg.Effects, "effects", true, "Give each instance an effect on its count")

	return cmd
}

func runBench(ctx context.Context, cfg benchConfig) (benchResult, error) {
	var effects uint64
	counter := reactor.EvaluableFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		n, _ := reactor.UseState(inst, 0)
		if !cfg.Effects {
			return n, nil, nil
		}
		return n, []reactor.EffectDescriptor{
			reactor.Effect(func() reactor.Cleanup {
				effects++
				return nil
			}, deps.On(n)),
		}, nil
	})

	rt := reactor.New(reactor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer rt.Shutdown(context.Background())

	ids := make([]reactor.InstanceID, cfg.Instances)
	for i := range ids {
		id, err := rt.Mount(ctx, counter)
		if err != nil {
			return benchResult{}, err
		}
		ids[i] = id
	}

	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	inc := reactor.Apply(func(prev any) any { return prev.(int) + 1 })
	tach := tachymeter.New(&tachymeter.Config{Size: cfg.Updates})
	start := time.Now()
	for round := 0; round < cfg.Updates; round++ {
		for _, id := range ids {
			if err := rt.Update(id, 0, inc); err != nil {
				return benchResult{}, err
			}
		}
		t := time.Now()
		if err := rt.Flush(ctx); err != nil {
			return benchResult{}, err
		}
		tach.AddTime(time.Since(t))
	}
	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	var evaluations uint64
	for _, in := range rt.Snapshot() {
		evaluations += in.Evaluations
	}

	return benchResult{
		Config:      cfg,
		Flush:       tach.Calc(),
		Evaluations: evaluations,
		Effects:     effects,
		Allocated:   after.TotalAlloc - before.TotalAlloc,
		Elapsed:     elapsed,
	}, nil
}

func renderBench(w io.Writer, res benchResult) {
	summary := table.NewWriter()
	summary.SetTitle("Reactor Tick Benchmark")
	summary.SetOutputMirror(w)
	summary.AppendRows([]table.Row{
		{"instances", humanize.Comma(int64(res.Config.Instances))},
		{"update rounds", humanize.Comma(int64(res.Config.Updates))},
		{"evaluations", humanize.Comma(int64(res.Evaluations))},
		{"effects run", humanize.Comma(int64(res.Effects))},
		{"allocated", humanize.Bytes(res.Allocated)},
		{"elapsed", res.Elapsed.Round(time.Microsecond)},
		{"evaluations/s", humanize.CommafWithDigits(float64(res.Evaluations)/res.Elapsed.Seconds(), 0)},
	})
	summary.Render()

	latency := table.NewWriter()
	latency.SetTitle("Flush latency")
	latency.SetOutputMirror(w)
	latency.AppendHeader(table.Row{"avg", "min", "p50", "p75", "p99", "max"})
	latency.AppendRow(table.Row{
		res.Flush.Time.Avg,
		res.Flush.Time.Min,
		res.Flush.Time.P50,
		res.Flush.Time.P75,
		res.Flush.Time.P99,
		res.Flush.Time.Max,
	})
	latency.Render()
}
