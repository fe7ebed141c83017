// Command hklreduce drives the neutron single-crystal reduction pipeline
// (spec §6 "External interfaces"): find-peaks, index, refine, predict,
// integrate and merge, each a flag.FlagSet subcommand persisting its
// state to a shared store.Store.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hklreduce/hklreduce/internal/xerr"
)

const version = "0.1.0"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "find-peaks":
		err = handleFindPeaks(args)
	case "index":
		err = handleIndex(args)
	case "refine":
		err = handleRefine(args)
	case "predict":
		err = handlePredict(args)
	case "integrate":
		err = handleIntegrate(args)
	case "merge":
		err = handleMerge(args)
	case "version":
		fmt.Printf("hklreduce version %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		os.Exit(xerr.ExitCode(err))
	}
}

func printUsage() {
	fmt.Println(`hklreduce - neutron single-crystal diffraction reduction pipeline

Usage: hklreduce <command> [options]

Commands:
  find-peaks   Search a numor's frame stack for blobs, write peaks to the store
  index        Auto-index a numor's peaks, write the best unit cell
  refine       Batch-refine a unit cell against indexed peaks
  predict      Enumerate predicted reflections in a resolution shell
  integrate    Integrate predicted peaks' intensities from raw frames
  merge        Merge indexed/integrated peaks by space group, report CC1/2
  version      Show hklreduce version
  help         Show this help message

Exit codes: 0 success, 1 invalid input, 2 convergence failure, 3 I/O error.

Examples:
  hklreduce find-peaks --instrument d19.yaml --store run.db --kernel annular --threshold 3.5 numor.dat peaks.txt
  hklreduce index --instrument d19.yaml --store run.db --numor-id <id> numor.dat solutions.txt
  hklreduce refine --instrument d19.yaml --store run.db --numor-id <id> --cell-id <id> --batches 4 numor.dat refined.txt
  hklreduce predict --store run.db --cell-id <id> --numor-id <id> --instrument d19.yaml --d-min 0.8 --d-max 10 numor.dat predicted.txt
  hklreduce integrate --instrument d19.yaml --store run.db --numor-id <id> numor.dat integrated.txt
  hklreduce merge --store run.db --experiment-id <id> --space-group "P 21 21 21" --friedel merged.txt`)
}
