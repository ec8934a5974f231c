package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/autonav/roadsim/internal/telemetry"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the telemetry database")
	runID := flag.String("run", "", "run to inspect (defaults to listing runs)")
	last := flag.Int("last", 20, "show N most recent episodes")
	ticks := flag.Bool("ticks", false, "dump tick records instead of episode summaries")
	jsonOut := flag.Bool("json", false, "output as JSON instead of a table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db roadsim.db [--run id] [--last N] [--ticks] [--json]")
		os.Exit(2)
	}

	tlog, err := telemetry.NewLog(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer tlog.Close()

	if *runID == "" {
		err = listRuns(tlog, *jsonOut)
	} else if *ticks {
		err = dumpTicks(tlog, *runID, *last, *jsonOut)
	} else {
		err = dumpEpisodes(tlog, *runID, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region modes

func listRuns(tlog *telemetry.Log, jsonOut bool) error {
	ids, err := tlog.RunIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(ids)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func dumpEpisodes(tlog *telemetry.Log, runID string, last int, jsonOut bool) error {
	episodes, err := tlog.Episodes(runID)
	if err != nil {
		return err
	}
	if len(episodes) > last {
		episodes = episodes[len(episodes)-last:]
	}
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(episodes)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EPISODE\tTICKS\tREWARD\tOUTCOME\tEPSILON\tQ-TABLE")
	for _, ep := range episodes {
		fmt.Fprintf(w, "%d\t%d\t%.1f\t%s\t%.3f\t%d\n",
			ep.Episode, ep.Ticks, ep.TotalReward, ep.Outcome, ep.Epsilon, ep.TableSize)
	}
	return w.Flush()
}

func dumpTicks(tlog *telemetry.Log, runID string, last int, jsonOut bool) error {
	ticks, err := tlog.Ticks(runID)
	if err != nil {
		return err
	}
	if len(ticks) > last {
		ticks = ticks[len(ticks)-last:]
	}
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(ticks)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EP\tTICK\tPHASE\tSTATE\tACT\tREWARD\tPOS")
	for _, tr := range ticks {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\t%.1f\t(%.0f, %.0f)\n",
			tr.Episode, tr.Tick, tr.Phase, tr.StateKey, tr.Action, tr.Reward, tr.X, tr.Y)
	}
	return w.Flush()
}

// #endregion modes
