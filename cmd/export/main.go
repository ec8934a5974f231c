package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/autonav/roadsim/internal/replay"
	"github.com/autonav/roadsim/internal/telemetry"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the telemetry database")
	runID := flag.String("run", "", "run to export (defaults to the newest)")
	fixtureOut := flag.String("fixture", "", "write a replay fixture here")
	reportOut := flag.String("report", "", "write an xlsx report here")
	alpha := flag.Float64("alpha", 0.1, "learning rate recorded in the fixture")
	gamma := flag.Float64("gamma", 0.95, "discount factor recorded in the fixture")
	flag.Parse()

	if *dbPath == "" || (*fixtureOut == "" && *reportOut == "") {
		fmt.Fprintln(os.Stderr, "usage: export --db roadsim.db [--run id] --fixture trace.json | --report run.xlsx")
		os.Exit(2)
	}

	tlog, err := telemetry.NewLog(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer tlog.Close()

	if *runID == "" {
		ids, err := tlog.RunIDs()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if len(ids) == 0 {
			fmt.Fprintln(os.Stderr, "no runs found")
			os.Exit(1)
		}
		*runID = ids[0]
	}

	if *fixtureOut != "" {
		ticks, err := tlog.Ticks(*runID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		f, err := replay.FromTickRecords(*runID, *alpha, *gamma, ticks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "convert: %v\n", err)
			os.Exit(1)
		}
		if err := f.Save(*fixtureOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s: %d steps from run %s\n", *fixtureOut, len(f.Steps), *runID)
	}

	if *reportOut != "" {
		if err := tlog.WriteReport(*runID, *reportOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s for run %s\n", *reportOut, *runID)
	}
}

// #endregion main
