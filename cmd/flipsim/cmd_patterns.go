package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/flip-racer/flipsim/internal/pattern"
	"github.com/spf13/cobra"
)

type patternInfo struct {
	Key           string  `json:"key"`
	Kind          string  `json:"kind"`
	Description   string  `json:"description"`
	Target        string  `json:"target"`
	MinLength     int     `json:"min_length"`
	TheoreticalEV float64 `json:"theoretical_ev"`
}

func newPatternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the registered stopping patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}

			infos := make([]patternInfo, 0, reg.Len())
			for _, key := range reg.Keys() {
				p, _ := reg.Lookup(key)
				infos = append(infos, patternInfo{
					Key:           key,
					Kind:          p.Kind().String(),
					Description:   p.Description(),
					Target:        patternTarget(p),
					MinLength:     p.MinLength(),
					TheoreticalEV: p.TheoreticalEV(),
				})
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(out).Encode(infos)
			}

			keyStyle := color.New(color.FgCyan)
			for _, info := range infos {
				keyStyle.Fprintf(out, "%-22s", info.Key)
				fmt.Fprintf(out, " %-28s %-11s EV %.0f\n", info.Description, info.Target, info.TheoreticalEV)
			}
			return nil
		},
	}
}

// patternTarget spells out what a pattern waits for as H/T letters.
func patternTarget(p *pattern.Pattern) string {
	switch p.Kind() {
	case pattern.KindRun:
		return strings.Repeat(p.Value().Letter(), p.MinLength())
	case pattern.KindAlternating:
		ht := make([]pattern.Outcome, p.MinLength())
		for i := range ht {
			ht[i] = pattern.Outcome((i + 1) % 2)
		}
		th := make([]pattern.Outcome, len(ht))
		for i, o := range ht {
			th[i] = 1 - o
		}
		return pattern.FormatOutcomes(ht) + "|" + pattern.FormatOutcomes(th)
	default:
		return pattern.FormatOutcomes(p.Outcomes())
	}
}
