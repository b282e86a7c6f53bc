// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecompressedPacketsTotal counts packets delivered by the decompressor.
	DecompressedPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rohc_decompressed_packets_total",
			Help: "Total number of ROHC packets decompressed",
		},
		[]string{"profile", "packet_type"},
	)

	// DecompressionFailuresTotal counts rejected packets by failure reason.
	DecompressionFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rohc_decompression_failures_total",
			Help: "Total number of ROHC packets that could not be decompressed",
		},
		[]string{"reason"},
	)

	// ContextsActive tracks the contexts currently held by the decompressor.
	ContextsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rohc_contexts_active",
			Help: "Number of decompression contexts currently held",
		},
	)

	// ListUpdatesTotal counts extension header lists received by encoding type.
	ListUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rohc_list_updates_total",
			Help: "Total number of compressed extension header lists decoded",
		},
		[]string{"encoding"},
	)

	// CRCRepairsTotal counts packets saved by a context repair.
	CRCRepairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rohc_crc_repairs_total",
			Help: "Total number of packets delivered after a CRC-driven SN repair",
		},
		[]string{"method"},
	)
)
