package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/autonav/roadsim/internal/policy"
	"github.com/autonav/roadsim/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "replay fixture to run")
	policyOut := flag.String("policy-out", "", "persist the rebuilt policy here")
	jsonOut := flag.Bool("json", false, "output summary as JSON")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture trace.json [--policy-out policy.db] [--json]")
		os.Exit(2)
	}

	f, err := replay.Load(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	summary, pol, err := replay.Run(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		os.Exit(1)
	}

	if *policyOut != "" {
		store, err := policy.NewStore(*policyOut)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open policy store: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		if err := pol.Save(store); err != nil {
			fmt.Fprintf(os.Stderr, "save policy: %v\n", err)
			os.Exit(1)
		}
	}

	if *jsonOut {
		json.NewEncoder(os.Stdout).Encode(summary)
		return
	}
	fmt.Printf("replayed %s\n", f.Name)
	fmt.Printf("  steps:        %d\n", summary.Steps)
	fmt.Printf("  terminals:    %d\n", summary.Terminals)
	fmt.Printf("  total reward: %.1f\n", summary.TotalReward)
	fmt.Printf("  q-table:      %d states\n", summary.TableSize)
}

// #endregion main
