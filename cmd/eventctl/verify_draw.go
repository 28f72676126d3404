package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"event-settlement/internal/policy"
	"event-settlement/internal/settlement"

	"github.com/spf13/cobra"
)

var verifyFile string

var verifyDrawCmd = &cobra.Command{
	Use:   "verify-draw",
	Short: "Check the draw proof in a published wager result",
	Long: `Reads a settlement result (as returned by the result endpoint) and
recomputes the slot draw from the revealed seed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if verifyFile != "" && verifyFile != "-" {
			f, err := os.Open(verifyFile)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		return verifyDraw(in, cmd.OutOrStdout())
	},
}

func init() {
	verifyDrawCmd.Flags().StringVarP(&verifyFile, "file", "f", "-", "result JSON file, - for stdin")
}

func verifyDraw(in io.Reader, out io.Writer) error {
	var res settlement.Result
	if err := json.NewDecoder(in).Decode(&res); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	if res.Draw == nil {
		return errors.New("result has no draw proof")
	}
	if err := policy.VerifyDraw(*res.Draw, res.EventID); err != nil {
		return err
	}
	if res.WinningOptionID != "" && res.WinningOptionID != res.Draw.OptionID {
		return fmt.Errorf("%w: result names %s, draw picked %s", policy.ErrDrawMismatch, res.WinningOptionID, res.Draw.OptionID)
	}
	return printResult(out, map[string]any{"event_id": res.EventID, "verified": true, "option_id": res.Draw.OptionID}, func(w io.Writer) {
		fmt.Fprintf(w, "draw verified: event %s picked %s (index %d)\n", res.EventID, res.Draw.OptionID, res.Draw.Index)
	})
}
