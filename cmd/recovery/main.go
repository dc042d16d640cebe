// Command recovery runs injection/recovery trials: it fakes the configured
// dataset from known parameters, samples each fake independently and counts
// how often every parameter lands inside its credible interval.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/spotfit/internal/analysis"
	"github.com/rewired-gh/spotfit/internal/config"
	"github.com/rewired-gh/spotfit/internal/logger"
	"github.com/rewired-gh/spotfit/internal/models"
	"github.com/rewired-gh/spotfit/internal/sampler"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	trials     = flag.Int("trials", 20, "Number of synthetic trials")
	parallel   = flag.Int("parallel", 4, "Trials sampled concurrently")
	noisy      = flag.Bool("noise", false, "Perturb faked values by their errors")
	deltaT     = flag.Float64("delta-t", -500, "Injected spot temperature offset (K)")
	tPhot      = flag.Float64("t-phot", 3300, "Injected photosphere temperature (K)")
	coverF     = flag.Float64("f", 0.2, "Injected mean covering fraction")
	deltaF     = flag.Float64("delta-f", 0.05, "Injected variable covering fraction")
	f1         = flag.Float64("f1", 0.01, "Injected single-spot covering fraction")
)

// tally counts per-parameter interval hits across trials.
type tally struct {
	mu        sync.Mutex
	hits      map[string]int
	recovered int
}

func (t *tally) add(summaries []models.ParamSummary, truth map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	all := true
	for _, s := range summaries {
		want, ok := truth[s.Name]
		if !ok {
			continue
		}
		if s.Contains(want) {
			t.hits[s.Name]++
		} else {
			all = false
		}
	}
	if all {
		t.recovered++
	}
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	template, err := analysis.LoadDataSet(cfg)
	if err != nil {
		logger.Fatal("Failed to load dataset: %v", err)
	}
	settings := analysis.Settings(cfg)
	model, err := analysis.Model(settings)
	if err != nil {
		logger.Fatal("Invalid star: %v", err)
	}

	truth := models.Params{DeltaT: *deltaT, TPhot: *tPhot, F: *coverF, DeltaF: *deltaF, F1: *f1}
	want := map[string]float64{
		models.ParamDeltaT: truth.DeltaT,
		models.ParamTPhot:  truth.TPhot,
		models.ParamF:      truth.F,
		models.ParamDeltaF: truth.DeltaF,
		models.ParamF1:     truth.F1,
	}
	logger.Info("Running %d trials of %q (%s rows each), injected %+v", *trials, template.Label(), humanize.Comma(int64(template.Len())), truth)

	results := &tally{hits: map[string]int{}}
	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*parallel)
	for i := 0; i < *trials; i++ {
		g.Go(func() error {
			var rng *rand.Rand
			if *noisy {
				rng = rand.New(rand.NewPCG(uint64(i), 0x5eed))
			}
			fake, err := template.Fake(model, truth, rng)
			if err != nil {
				return err
			}
			fake = fake.WithLabel(fmt.Sprintf("%s-trial%d", fake.Label(), i))

			s := settings
			s.Seed = settings.Seed + uint64(i)
			orch := sampler.New(nil)
			if err := orch.Configure(fake, s); err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			if _, err := orch.Sample(ctx, cfg.Sampler.BurnIn, cfg.Sampler.Production); err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			summaries, err := orch.Summaries()
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			results.add(summaries, want)
			logger.Debug("Trial %d done", i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Fatal("Recovery failed: %v", err)
	}

	fmt.Printf("%d trials in %v\n", *trials, time.Since(start).Round(time.Second))
	for _, name := range []string{models.ParamDeltaT, models.ParamTPhot, models.ParamF, models.ParamDeltaF, models.ParamF1} {
		fmt.Printf("  %-8s inside %.0f%% interval in %d/%d trials\n", name, 100*settings.CredibleLevel, results.hits[name], *trials)
	}
	fmt.Printf("  all parameters recovered in %d/%d trials (%.0f%%)\n", results.recovered, *trials, 100*float64(results.recovered)/float64(*trials))
}
