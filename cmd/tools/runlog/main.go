// Command runlog lists recent conversions recorded by expt2cif in a
// run-catalog database.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/COMCIFS/instrument-geometry-info/internal/runlog"
)

func main() {
	dbPath := flag.String("db", "conversion_runs.db", "run-catalog database")
	limit := flag.Int("n", 20, "number of runs to list")
	flag.Parse()

	store, err := runlog.Open(*dbPath)
	if err != nil {
		log.Fatalf("runlog: %v", err)
	}
	defer store.Close()

	runs, err := store.RecentRuns(*limit)
	if err != nil {
		log.Fatalf("runlog: %v", err)
	}
	printRuns(os.Stdout, runs)
}

// printRuns writes one line per run, newest first. Failed runs get their
// detail on a continuation line.
func printRuns(w io.Writer, runs []*runlog.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	fmt.Fprintf(w, "%-19s  %-5s  %5s  %6s  %-16s  %s\n",
		"STARTED", "STAT", "SCANS", "FRAMES", "DATA NAME", "OUTPUT")
	for _, r := range runs {
		started := time.Unix(0, r.StartedAt).Format("2006-01-02 15:04:05")
		fmt.Fprintf(w, "%-19s  %-5s  %5d  %6d  %-16s  %s\n",
			started, r.Status, r.Scans, r.Frames, r.DataName, r.OutputPath)
		if r.Detail != "" {
			fmt.Fprintf(w, "    %s\n", r.Detail)
		}
	}
}
