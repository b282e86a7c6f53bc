package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newValidateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Load the configuration, apply defaults and environment overrides, and
report whether it is usable.

Examples:
  rohc validate -c rohc.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("INVALID: %w", err)
			}

			var enabled []string
			for id, o := range cfg.Decompressor.ProfileOptions() {
				if o.Enabled {
					enabled = append(enabled, id.String())
				}
			}
			sort.Strings(enabled)

			fmt.Fprintf(cmd.OutOrStdout(), "VALID: %s CIDs up to %d, profiles %s\n",
				cfg.Decompressor.CID(), cfg.Decompressor.MaxCID, strings.Join(enabled, ","))
			return nil
		},
	}
}
