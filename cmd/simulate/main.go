package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/autonav/roadsim/internal/policy"
	"github.com/autonav/roadsim/internal/scenario"
	"github.com/autonav/roadsim/internal/sim"
	"github.com/autonav/roadsim/internal/telemetry"
	"github.com/autonav/roadsim/internal/viz"
)

// #region main

func main() {
	scenPath := flag.String("scenario", "", "scenario file (defaults to the stock town)")
	dbPath := flag.String("db", envOr("ROADSIM_DB", "roadsim.db"), "telemetry database")
	policyPath := flag.String("policy", envOr("ROADSIM_POLICY", "policy.db"), "policy database")
	vizAddr := flag.String("viz", "", "serve live frames on this address (e.g. :8080)")
	episodes := flag.Int("episodes", 0, "override the scenario's episode budget")
	seed := flag.Int64("seed", 0, "override the scenario's world seed")
	report := flag.String("report", "", "write an xlsx report here after the run")
	flag.Parse()

	scen := scenario.Default()
	if *scenPath != "" {
		s, err := scenario.Load(*scenPath)
		if err != nil {
			log.Fatalf("load scenario: %v", err)
		}
		scen = s
	}
	if *episodes > 0 {
		scen.Episodes = *episodes
	}
	if *seed != 0 {
		scen.Seed = *seed
	}

	tlog, err := telemetry.NewLog(*dbPath)
	if err != nil {
		log.Fatalf("open telemetry: %v", err)
	}
	defer tlog.Close()

	store, err := policy.NewStore(*policyPath)
	if err != nil {
		log.Fatalf("open policy store: %v", err)
	}
	defer store.Close()

	pol := policy.New(scen.Seed)
	if err := pol.Load(store); err != nil {
		log.Fatalf("load policy: %v", err)
	}
	if pol.Len() > 0 {
		log.Printf("[SIM] resuming policy with %d known states", pol.Len())
	}

	var publisher sim.FramePublisher
	if *vizAddr != "" {
		server := viz.NewServer()
		publisher = server
		go func() {
			if err := server.ListenAndServe(*vizAddr); err != nil {
				log.Fatalf("viz server: %v", err)
			}
		}()
	}

	runner, err := sim.NewRunner(scen, pol, tlog, publisher)
	if err != nil {
		log.Fatalf("assemble runner: %v", err)
	}

	fmt.Printf("Road Simulator\n")
	fmt.Printf("  scenario: %s | episodes: %d | obstacles: %d | telemetry: %s\n",
		scen.Name, scen.Episodes, scen.ObstacleCount, *dbPath)

	summary, err := runner.RunTraining()
	if err != nil {
		log.Fatalf("training: %v", err)
	}

	if err := pol.Save(store); err != nil {
		log.Fatalf("save policy: %v", err)
	}

	fmt.Printf("\nRun %s finished\n", summary.RunID)
	fmt.Printf("  episodes:   %d\n", summary.Episodes)
	fmt.Printf("  goals:      %d\n", summary.Goals)
	fmt.Printf("  collisions: %d\n", summary.Collisions)
	fmt.Printf("  no-route:   %d\n", summary.NoRoutes)
	fmt.Printf("  timeouts:   %d\n", summary.Timeouts)
	fmt.Printf("  mean reward: %.1f\n", summary.TotalReward/float64(summary.Episodes))
	fmt.Printf("  final epsilon: %.3f | q-table: %d states\n", summary.FinalEpsilon, summary.TableSize)

	if *report != "" {
		if err := tlog.WriteReport(summary.RunID, *report); err != nil {
			log.Fatalf("write report: %v", err)
		}
		fmt.Printf("  report: %s\n", *report)
	}
}

// #endregion main

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
