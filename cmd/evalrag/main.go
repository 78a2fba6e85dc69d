package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"ai-assistant-be/internal/bootstrap"
	"ai-assistant-be/internal/config"
	"ai-assistant-be/pkg/eval"

	"github.com/fatih/color"
)

// evalrag replays a fixed query set against the live retrieval pipeline and
// asserts minimum result/citation counts per case. Exits non-zero when any
// case fails its thresholds.
func main() {
	casesPath := flag.String("cases", "eval_cases.json", "path to the JSON case file")
	jsonOut := flag.Bool("json", false, "emit the report as JSON instead of the colored table")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run deadline")
	flag.Parse()

	cfg := config.Load()
	container := bootstrap.NewContainer(cfg)
	defer container.Shutdown()

	cases, err := eval.LoadCases(*casesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evalrag: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	harness := eval.NewHarness(container.Pipeline, container.Logger)
	reports, allPassed := harness.Run(ctx, cases)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(reports)
	} else {
		printReports(reports)
	}

	if !allPassed {
		os.Exit(1)
	}
}

func printReports(reports []eval.Report) {
	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	passed := 0
	for _, r := range reports {
		status := fail("FAIL")
		if r.Passed {
			status = pass("PASS")
			passed++
		}
		fmt.Printf("%s  %-50q  results=%d citations=%d latency=%dms", status, r.Query, r.ResultCount, r.CitationCount, r.LatencyMs)
		if r.Refused {
			fmt.Print("  (refused)")
		}
		if r.Error != "" {
			fmt.Printf("  error=%s", r.Error)
		}
		fmt.Println()
	}

	fmt.Printf("\n%d/%d cases passed\n", passed, len(reports))
}
