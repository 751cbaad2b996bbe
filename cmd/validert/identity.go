package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"validert/internal/extract"
)

var identityCmd = &cobra.Command{
	Use:   "identity <report>",
	Short: "Print the cache identity (document, scoring model and pipeline hashes) of a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRunner(loadConfig())
		if err != nil {
			return err
		}
		ex, err := extract.File(args[0])
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(r.pipeline.Identity(ex.Text))
	},
}
