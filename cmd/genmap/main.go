package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/autonav/roadsim/internal/scenario"
)

// #region main

func main() {
	name := flag.String("name", "", "scenario name (defaults to town-WxH)")
	width := flag.Int("width", 40, "grid width in cells")
	height := flag.Int("height", 30, "grid height in cells")
	out := flag.String("out", "", "output scenario file")
	flag.Parse()

	if *out == "" {
		fmt.Fprintln(os.Stderr, "usage: genmap --out scenario.json [--width N] [--height N] [--name label]")
		os.Exit(2)
	}
	if *name == "" {
		*name = fmt.Sprintf("town-%dx%d", *width, *height)
	}

	s, err := scenario.GenerateGrid(*name, *width, *height)
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
	if err := s.Save(*out); err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Printf("wrote %s: %d nodes, %d edges, start %s, goal %s\n",
		*out, len(s.Nodes), len(s.Edges), s.StartID, s.GoalID)
}

// #endregion main
