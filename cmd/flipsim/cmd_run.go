package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/flip-racer/flipsim/internal/pattern"
	"github.com/flip-racer/flipsim/internal/sim"
	"github.com/spf13/cobra"
)

// customPatternKey is the registry key used for --sequence.
const customPatternKey = "custom"

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation to completion and print the statistics",
		Long: `Run every session until it finds the pattern or reaches the flip limit,
without the server or the per-tick update loop.

Example:
  flipsim run --pattern 3_consecutive_heads --sessions 10000
  flipsim run --sequence HTTH --seed 42 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			key, _ := cmd.Flags().GetString("pattern")
			seqFlag, _ := cmd.Flags().GetString("sequence")
			sessions, _ := cmd.Flags().GetInt("sessions")
			maxFlips, _ := cmd.Flags().GetInt("max-flips")
			seed, _ := cmd.Flags().GetUint64("seed")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if key == "" {
				key = cfg.Simulation.DefaultPattern
			}
			if !cmd.Flags().Changed("sessions") {
				sessions = cfg.Simulation.DefaultSessions
			}
			if !cmd.Flags().Changed("max-flips") {
				maxFlips = cfg.Simulation.DefaultMaxFlips
			}
			if seed == 0 {
				seed = cfg.Simulation.Seed
			}

			reg, err := cfg.Registry()
			if err != nil {
				return err
			}
			if seqFlag != "" {
				outcomes, err := pattern.ParseOutcomes(seqFlag)
				if err != nil {
					return err
				}
				p, err := pattern.Sequence("", outcomes...)
				if err != nil {
					return err
				}
				if err := reg.Register(customPatternKey, p); err != nil {
					return err
				}
				key = customPatternKey
			}

			s := sim.New(reg, sim.WithSeed(seed),
				sim.WithLimits(cfg.Simulation.SessionLimit, cfg.Simulation.FlipLimit))
			if err := s.Configure(key, sessions, maxFlips); err != nil {
				return err
			}

			start := time.Now()
			st, err := s.RunToCompletion()
			if err != nil {
				return err
			}
			logger.Debug("run finished", "pattern", key, "sessions", sessions, "elapsed", time.Since(start))

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStatistics(cmd.OutOrStdout(), st)
			return nil
		},
	}

	cmd.Flags().String("pattern", "", "Pattern key (default from config)")
	cmd.Flags().String("sequence", "", "Custom outcome sequence such as HTH; overrides --pattern")
	cmd.Flags().Int("sessions", sim.DefaultSessions, "Number of parallel sessions")
	cmd.Flags().Int("max-flips", sim.DefaultMaxFlips, "Flip limit per session")
	cmd.Flags().Uint64("seed", 0, "Random seed for a reproducible run (0 = random)")

	return cmd
}

func printStatistics(w io.Writer, st sim.Statistics) {
	title := color.New(color.FgCyan, color.Bold)
	label := color.New(color.Faint)

	title.Fprintf(w, "%s (%s)\n", st.PatternDescription, st.PatternKey)
	row := func(name, format string, args ...interface{}) {
		label.Fprintf(w, "  %-22s", name)
		fmt.Fprintf(w, format+"\n", args...)
	}

	row("sessions", "%d", st.TotalSessions)
	row("pattern found", "%d (%.1f%%)", st.PatternFoundSessions, st.PatternSuccessRate*100)
	row("max flips reached", "%d", st.MaxFlipsReachedSessions)
	row("average flips (all)", "%.2f", st.AverageFlipsAll)
	row("theoretical EV", "%.2f", st.TheoreticalEV)
	row("actual EV", "%.2f", st.ActualEV)

	dev := color.New(color.FgGreen)
	if st.TheoreticalEV > 0 && abs(st.EVDeviation)/st.TheoreticalEV > 0.05 {
		dev = color.New(color.FgYellow)
	}
	label.Fprintf(w, "  %-22s", "deviation")
	dev.Fprintf(w, "%+.2f\n", st.EVDeviation)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
