// Package main runs a standalone waterfall over a JSON tranche stack and
// cash timeline, and prints per-period payouts.
//
// Input layout:
//
//	{
//	  "tranches": [{"name": "senior", "priority": 1, "entitlement": "1000"}, ...],
//	  "cash": {"periods": [{"index": 0, "revenue": "600"}, ...]}
//	}
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/rules"
	"capital-stack-lab/internal/waterfall"
)

type input struct {
	Tranches []domain.Tranche        `json:"tranches"`
	Cash     domain.CashFlowTimeline `json:"cash"`
}

func main() {
	logger := log.New(os.Stderr, "[waterfall] ", 0)

	inputFile := flag.String("input", "-", "input JSON file (- = stdin)")
	rulesFile := flag.String("rules", "", "business rules YAML (empty = defaults)")
	asJSON := flag.Bool("json", false, "print the full result as JSON")
	flag.Parse()

	businessRules := rules.Default()
	if *rulesFile != "" {
		r, err := rules.Load(*rulesFile)
		if err != nil {
			logger.Fatalf("Error: %v", err)
		}
		businessRules = r
	}

	in, err := readInput(*inputFile)
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}

	result, err := waterfall.Run(businessRules, in.Tranches, in.Cash)
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			logger.Fatalf("Error: %v", err)
		}
		return
	}
	if err := printTable(os.Stdout, result); err != nil {
		logger.Fatalf("Error: %v", err)
	}
}

func readInput(path string) (input, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return input{}, fmt.Errorf("read input: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var in input
	if err := dec.Decode(&in); err != nil {
		return input{}, fmt.Errorf("decode input: %w", err)
	}
	return in, nil
}

func printTable(out io.Writer, result *domain.WaterfallResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprint(w, "PERIOD\tAVAILABLE\t")
	for _, t := range result.Tranches {
		fmt.Fprintf(w, "%s\t", t.Name)
	}
	fmt.Fprintln(w, "UNDISTRIBUTED\t")

	for p, period := range result.Periods {
		fmt.Fprintf(w, "%d\t%s\t", period.Index, period.Available)
		for _, t := range result.Tranches {
			fmt.Fprintf(w, "%s\t", t.Payments[p])
		}
		fmt.Fprintf(w, "%s\t\n", period.Undistributed)
	}

	fmt.Fprint(w, "TOTAL\t\t")
	for _, t := range result.Tranches {
		fmt.Fprintf(w, "%s\t", t.Total)
	}
	fmt.Fprintln(w, "\t")
	if err := w.Flush(); err != nil {
		return err
	}

	for _, t := range result.Unrecouped() {
		fmt.Fprintf(out, "unrecouped: %s owed %s\n", t.Name, t.Unrecouped)
	}
	return nil
}
