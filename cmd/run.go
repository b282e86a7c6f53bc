package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"firestige.xyz/rohc/internal/config"
	"firestige.xyz/rohc/internal/decompressor"
	"firestige.xyz/rohc/internal/log"
	"firestige.xyz/rohc/internal/metrics"
	"firestige.xyz/rohc/internal/pipeline"
	"firestige.xyz/rohc/internal/sink"
	"firestige.xyz/rohc/internal/sink/console"
	"firestige.xyz/rohc/internal/sink/pcap"
	"firestige.xyz/rohc/internal/sink/report"
	"firestige.xyz/rohc/internal/source"
)

// outputFlags override the output section of the config file.
type outputFlags struct {
	pcap   string
	report string
	print  bool
}

func (o *outputFlags) apply(cfg *config.OutputConfig) {
	if o.pcap != "" {
		cfg.Pcap = o.pcap
	}
	if o.report != "" {
		cfg.Report = o.report
	}
}

func openSinks(cfg config.OutputConfig, echo bool, stdout io.Writer) ([]sink.Sink, *report.Sink, error) {
	var sinks []sink.Sink
	closeAll := func() {
		for _, s := range sinks {
			s.Close()
		}
	}

	if cfg.Pcap != "" {
		s, err := pcap.Create(cfg.Pcap)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, s)
	}
	var rep *report.Sink
	if cfg.Report != "" {
		s, err := report.Create(cfg.Report)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		rep = s
		sinks = append(sinks, s)
	}
	if echo {
		sinks = append(sinks, console.NewSink(stdout))
	}
	return sinks, rep, nil
}

// run decompresses everything src yields. It owns src.
func run(ctx context.Context, cfg *config.GlobalConfig, src source.Source, echo bool, stdout io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			src.Close()
			return err
		}
		defer srv.Stop(context.Background())
	}

	d, err := decompressor.New(decompressor.ConfigFrom(&cfg.Decompressor))
	if err != nil {
		src.Close()
		return err
	}
	defer d.Close()

	sinks, rep, err := openSinks(cfg.Output, echo, stdout)
	if err != nil {
		src.Close()
		return err
	}

	p := pipeline.NewBuilder().
		WithSource(src).
		WithDecompressor(d).
		WithSinks(sinks...).
		Build()
	p.Start(ctx)
	err = p.Wait()
	if rep != nil {
		rep.SetStates(d.States())
	}
	if serr := p.Stop(); err == nil {
		err = serr
	}

	st := p.Stats()
	log.GetLogger().WithFields(map[string]interface{}{
		"contexts": len(d.CIDs()),
	}).Info("decompression finished")
	fmt.Fprintf(stdout, "%d packets: %d decompressed, %d failed\n", st.Received, st.Decompressed, st.Failed)
	return err
}
