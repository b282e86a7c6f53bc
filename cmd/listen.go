package cmd

import (
	"github.com/spf13/cobra"

	"firestige.xyz/rohc/internal/source/udp"
)

func newListenCmd(load loader) *cobra.Command {
	var (
		out    outputFlags
		listen string
	)
	c := &cobra.Command{
		Use:   "listen",
		Short: "Decompress ROHC packets received on a UDP socket",
		Long: `Decompress ROHC packets received as UDP datagrams until interrupted.

Examples:
  rohc listen -c rohc.yaml                  # address from input.listen
  rohc listen --listen :6000 -o out.pcap`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Input.Listen = listen
			}
			out.apply(&cfg.Output)

			src, err := udp.Listen(cfg.Input.Listen, cfg.Input.BatchSize)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, src, out.print, cmd.OutOrStdout())
		},
	}
	c.Flags().StringVarP(&out.pcap, "out", "o", "", "pcap file for decompressed packets")
	c.Flags().StringVarP(&out.report, "report", "r", "", "YAML file for the per-CID report")
	c.Flags().BoolVar(&out.print, "print", false, "print one line per packet")
	c.Flags().StringVar(&listen, "listen", "", "UDP address to bind (overrides input.listen)")
	return c
}
