package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/funil-digital/leadscore/internal/model"
)

var scoreInput string

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single lead payload",
	Long: `Reads a JSON payload with a lead and its events, runs it through the
scoring engine, and prints the result. Reads stdin when --input is omitted.
The payload shape matches the POST /score request body.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload []byte
		var err error
		if scoreInput == "" || scoreInput == "-" {
			payload, err = io.ReadAll(cmd.InOrStdin())
		} else {
			payload, err = os.ReadFile(scoreInput)
		}
		if err != nil {
			return eris.Wrap(err, "score: read payload")
		}

		var req struct {
			Lead   model.Lead    `json:"lead"`
			Events []model.Event `json:"events"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return eris.Wrap(err, "score: parse payload")
		}

		eng, _ := buildEngine(cfg.ML)
		result := eng.Score(req.Lead, req.Events)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreInput, "input", "", "payload JSON file (default stdin)")
	rootCmd.AddCommand(scoreCmd)
}
