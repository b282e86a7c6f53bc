package cmd

import (
	"github.com/spf13/cobra"

	"firestige.xyz/rohc/internal/source/file"
)

func newDecodeCmd(load loader) *cobra.Command {
	var (
		out  outputFlags
		port uint16
	)
	c := &cobra.Command{
		Use:   "decode <capture>",
		Short: "Decompress the ROHC packets of a pcap or pcapng file",
		Long: `Decompress the ROHC packets carried over UDP in a capture file.

Examples:
  rohc decode in.pcap -o out.pcap                 # write the rebuilt IP packets
  rohc decode in.pcap -r report.yaml --port 6000  # per-CID report, ROHC on UDP port 6000
  rohc decode in.pcapng --print                   # one line per packet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Input.Port = int(port)
			}
			out.apply(&cfg.Output)

			src, err := file.Open(args[0], uint16(cfg.Input.Port))
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, src, out.print, cmd.OutOrStdout())
		},
	}
	c.Flags().StringVarP(&out.pcap, "out", "o", "", "pcap file for decompressed packets")
	c.Flags().StringVarP(&out.report, "report", "r", "", "YAML file for the per-CID report")
	c.Flags().BoolVar(&out.print, "print", false, "print one line per packet")
	c.Flags().Uint16Var(&port, "port", 0, "UDP port carrying ROHC (overrides input.port)")
	return c
}
