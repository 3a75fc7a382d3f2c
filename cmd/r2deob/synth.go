package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xermicus/r2deob/internal/ast"
	"github.com/xermicus/r2deob/internal/kernel"
	"github.com/xermicus/r2deob/internal/session"
)

var synthFlags = struct {
	registers *string
	output    *string
	ops       *string
	runs      *int
	threads   *int
	batch     *int
	wordBits  *int
	demo      *bool
	demoRuns  *int
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Recover an expression from traces",
		Example: `  r2deob synth --registers a,b --ops add,sub --runs 8192 --threads 8 < traces.csv
  r2deob synth --registers a,b --demo`,
		RunE: runSynth,
	}
	synthFlags.registers = cmd.Flags().String("registers", "", "comma-separated input register names (required)")
	synthFlags.output = cmd.Flags().String("output", "out", "output column name (informational only)")
	synthFlags.ops = cmd.Flags().String("ops", "add,sub,mul,div", "comma-separated operator subset: add,sub,mul,div")
	synthFlags.runs = cmd.Flags().Int("runs", 8192, "search run budget")
	synthFlags.threads = cmd.Flags().Int("threads", 8, "worker pool size")
	synthFlags.batch = cmd.Flags().Int("batch", 32, "channel buffer / drain batch size")
	synthFlags.wordBits = cmd.Flags().Int("word-bits", 64, "word width: 32 or 64")
	synthFlags.demo = cmd.Flags().Bool("demo", false, "generate traces from an in-memory fake collaborator instead of reading stdin")
	synthFlags.demoRuns = cmd.Flags().Int("demo-traces", 8, "number of traces to generate in --demo mode")
	rootCmd.AddCommand(cmd)
}

func runSynth(cmd *cobra.Command, args []string) error {
	if *synthFlags.registers == "" {
		return fmt.Errorf("--registers is required")
	}
	registers := splitCSVFlag(*synthFlags.registers)
	ops, err := parseOps(*synthFlags.ops)
	if err != nil {
		return err
	}

	cfg := session.Default(registers, *synthFlags.output)
	cfg.Ops = ops
	cfg.NRuns = *synthFlags.runs
	cfg.NThreads = *synthFlags.threads
	cfg.BatchSize = *synthFlags.batch
	cfg.WordBits = *synthFlags.wordBits

	s, err := session.NewSession(cfg)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if *synthFlags.demo {
		if err := feedDemoTraces(s, registers, *synthFlags.demoRuns); err != nil {
			return err
		}
	} else {
		if err := feedStdinTraces(s, cmd.InOrStdin(), registers); err != nil {
			return err
		}
	}

	result, err := s.Synthesize(context.Background())
	if err != nil {
		return fmt.Errorf("synthesis: %w", err)
	}

	if result.Winner == nil {
		logrus.WithFields(logrus.Fields{
			"best_score":     result.BestScore,
			"expanded_nodes": result.ExpandedNodes,
		}).Warn("no exact candidate found")
		fmt.Fprintf(cmd.OutOrStdout(), "no exact match; best candidate: %s (score %.4f)\n",
			ast.MathNotation(result.Best), result.BestScore)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), ast.MathNotation(*result.Winner))
	return nil
}

// feedDemoTraces drives the fakeEmulator collaborator for n runs,
// feeding each resulting (inputs, output) pair into the session.
func feedDemoTraces(s *session.Session, registers []string, n int) error {
	emu, err := newFakeEmulator(registers)
	if err != nil {
		return err
	}
	for run := 0; run < n; run++ {
		if err := emu.Seek(run); err != nil {
			return err
		}
		for i, r := range registers {
			if err := emu.SetRegister(r, kernel.Word(run*3+i)); err != nil {
				return err
			}
		}
		if err := emu.Step(); err != nil {
			return err
		}
		out, err := emu.ReadOutput()
		if err != nil {
			return err
		}
		inputs := make(map[string]kernel.Word, len(registers))
		for i, r := range registers {
			inputs[r] = kernel.Word(run*3 + i)
		}
		if err := s.AddTrace(inputs, out); err != nil {
			return fmt.Errorf("demo trace %d: %w", run, err)
		}
	}
	return nil
}

// feedStdinTraces reads CSV rows, one trace per line, columns matching
// registers followed by the output, and feeds each into the session.
func feedStdinTraces(s *session.Session, r io.Reader, registers []string) error {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = len(registers) + 1

	lineNo := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading trace CSV: %w", err)
		}
		lineNo++

		inputs := make(map[string]kernel.Word, len(registers))
		for i, r := range registers {
			v, err := strconv.ParseInt(strings.TrimSpace(record[i]), 10, 64)
			if err != nil {
				return fmt.Errorf("line %d: register %q: %w", lineNo, r, err)
			}
			inputs[r] = kernel.Word(v)
		}
		out, err := strconv.ParseInt(strings.TrimSpace(record[len(registers)]), 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: output: %w", lineNo, err)
		}
		if err := s.AddTrace(inputs, kernel.Word(out)); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if lineNo == 0 {
		return fmt.Errorf("no traces read from stdin")
	}
	return nil
}

func splitCSVFlag(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseOps(v string) ([]kernel.Operator, error) {
	names := splitCSVFlag(v)
	out := make([]kernel.Operator, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(n) {
		case "add", "+":
			out = append(out, kernel.Add)
		case "sub", "-":
			out = append(out, kernel.Sub)
		case "mul", "*":
			out = append(out, kernel.Mul)
		case "div", "/":
			out = append(out, kernel.Div)
		default:
			return nil, fmt.Errorf("unknown operator %q (want add|sub|mul|div)", n)
		}
	}
	return out, nil
}
