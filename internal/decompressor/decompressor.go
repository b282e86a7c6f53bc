// Package decompressor routes the packets of one ROHC channel to the
// decompression context of their CID.
package decompressor

import (
	"errors"
	"fmt"
	"sync"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/cid"
	"firestige.xyz/rohc/internal/core/decomp"
	"firestige.xyz/rohc/internal/log"
	"firestige.xyz/rohc/internal/metrics"
)

// DecodeError is returned for a packet that could not be decompressed.
type DecodeError struct {
	CID     uint16
	Profile core.ProfileID // zero when no context is involved
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cid %d: %v", e.CID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decompressor holds the contexts of one channel. It is safe for concurrent
// use, packets are decoded one at a time.
type Decompressor struct {
	mu       sync.Mutex
	cfg      Config
	contexts *registry
	log      log.Logger
}

// New creates a decompressor without any context.
func New(cfg Config) (*Decompressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Decompressor{
		cfg:      cfg,
		contexts: newRegistry(),
		log:      log.GetLogger().WithField("component", "decompressor"),
	}, nil
}

// Decompress decodes one packet taken off the channel. Errors are of type
// *DecodeError, except for packets whose CID cannot be read.
func (d *Decompressor) Decompress(pkt core.RawPacket) (*core.DecodedPacket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	h, err := cid.Decode(pkt.Data, d.cfg.CIDType)
	if err != nil {
		d.failed(err)
		return nil, err
	}
	if h.CID > d.cfg.MaxCID {
		return nil, d.reject(h.CID, 0, fmt.Errorf("%w: CID %d above max CID %d", core.ErrInvalidArgument, h.CID, d.cfg.MaxCID))
	}

	ctx, known := d.contexts.Get(h.CID)
	fresh := false
	if decomp.IsIR(h.Type) {
		id, ok := decomp.PacketProfile(h)
		if !ok {
			return nil, d.reject(h.CID, 0, fmt.Errorf("%w: IR without profile", core.ErrPacketTooShort))
		}
		if !known || ctx.Profile() != id {
			if ctx, err = d.newContext(h.CID, id); err != nil {
				return nil, d.reject(h.CID, id, err)
			}
			fresh = true
		}
	} else if !known {
		return nil, d.reject(h.CID, 0, fmt.Errorf("%w: %d", core.ErrNoContext, h.CID))
	}

	res, err := ctx.Decode(pkt.Data, h, pkt.Arrival)
	if err != nil {
		if !fresh && errors.Is(err, core.ErrContextDamaged) && d.cfg.options(ctx.Profile()).Strict {
			d.destroy(h.CID, "damaged context dropped")
		}
		return nil, d.reject(h.CID, ctx.Profile(), err)
	}
	if fresh {
		d.install(h.CID, ctx)
	}
	return d.delivered(pkt, ctx, res), nil
}

// newContext creates the context announced by an IR. It is installed only
// once the IR is accepted, so a corrupted IR never drops a working context.
func (d *Decompressor) newContext(id uint16, profile core.ProfileID) (*decomp.Context, error) {
	if !d.cfg.options(profile).Enabled {
		return nil, fmt.Errorf("%w: %s is disabled", core.ErrUnsupportedProfile, profile)
	}
	return decomp.New(id, profile, d.cfg.Context)
}

func (d *Decompressor) install(id uint16, ctx *decomp.Context) {
	if replaced := d.contexts.Set(id, ctx); replaced {
		d.log.WithFields(map[string]interface{}{"cid": id, "profile": ctx.Profile().String()}).
			Info("context re-created for a new profile")
		return
	}
	metrics.ContextsActive.Inc()
	d.log.WithFields(map[string]interface{}{"cid": id, "profile": ctx.Profile().String()}).
		Info("context created")
}

func (d *Decompressor) delivered(pkt core.RawPacket, ctx *decomp.Context, res *decomp.Result) *core.DecodedPacket {
	out := &core.DecodedPacket{
		Timestamp: pkt.Timestamp,
		CID:       ctx.CID(),
		Profile:   ctx.Profile(),
		Kind:      res.Kind,
		SN:        res.SN,
		Data:      res.Data,
	}

	metrics.DecompressedPacketsTotal.WithLabelValues(out.Profile.String(), out.Kind.String()).Inc()
	for _, e := range res.Lists {
		metrics.ListUpdatesTotal.WithLabelValues(e.String()).Inc()
		out.Lists = append(out.Lists, e.String())
	}
	if res.Repair != decomp.RepairNone {
		out.Repair = res.Repair.String()
		metrics.CRCRepairsTotal.WithLabelValues(out.Repair).Inc()
		d.log.WithFields(map[string]interface{}{"cid": out.CID, "sn": out.SN, "repair": out.Repair}).
			Warn("packet delivered after SN repair")
	}

	if d.log.IsDebugEnabled() {
		d.log.WithFields(map[string]interface{}{
			"cid":     out.CID,
			"profile": out.Profile.String(),
			"type":    out.Kind.String(),
			"sn":      out.SN,
			"len":     len(out.Data),
		}).Debug("packet decompressed")
	}
	return out
}

func (d *Decompressor) reject(id uint16, profile core.ProfileID, err error) error {
	d.failed(err)
	if d.log.IsDebugEnabled() {
		d.log.WithField("cid", id).WithError(err).Debug("packet rejected")
	}
	return &DecodeError{CID: id, Profile: profile, Err: err}
}

func (d *Decompressor) failed(err error) {
	metrics.DecompressionFailuresTotal.WithLabelValues(FailureReason(err)).Inc()
}

// DestroyContext forgets the context of cid. It reports whether one existed.
func (d *Decompressor) DestroyContext(id uint16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroy(id, "context destroyed")
}

func (d *Decompressor) destroy(id uint16, msg string) bool {
	ctx, ok := d.contexts.Delete(id)
	if !ok {
		return false
	}
	ctx.Destroy()
	metrics.ContextsActive.Dec()
	d.log.WithField("cid", id).Info(msg)
	return true
}

// Context returns the context bound to cid. The context must not be used
// while packets are being decompressed.
func (d *Decompressor) Context(id uint16) (*decomp.Context, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.contexts.Get(id)
}

// CIDs returns the CIDs that have a context, in increasing order.
func (d *Decompressor) CIDs() []uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.contexts.CIDs()
}

// States returns the state of every context.
func (d *Decompressor) States() map[uint16]core.ContextState {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint16]core.ContextState, d.contexts.Count())
	for _, id := range d.contexts.CIDs() {
		ctx, _ := d.contexts.Get(id)
		out[id] = ctx.State()
	}
	return out
}

// Close destroys every context.
func (d *Decompressor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	metrics.ContextsActive.Sub(float64(d.contexts.Count()))
	d.contexts.Clear()
}

// FailureReason maps a decompression error to a short metric label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, core.ErrCRCMismatch):
		return "crc"
	case errors.Is(err, core.ErrContextDamaged):
		return "context_damaged"
	case errors.Is(err, core.ErrNoContext):
		return "no_context"
	case errors.Is(err, core.ErrUnsupportedProfile), errors.Is(err, core.ErrProfileMismatch):
		return "profile"
	case errors.Is(err, core.ErrUnknownPacketType):
		return "unknown_type"
	case errors.Is(err, core.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, core.ErrMalformedList), errors.Is(err, core.ErrInvalidItemData), errors.Is(err, core.ErrUnknownGeneration):
		return "list"
	case errors.Is(err, core.ErrSNDecodeAmbiguous), errors.Is(err, core.ErrIPIDDecodeAmbiguous):
		return "ambiguous"
	case errors.Is(err, core.ErrPacketTooShort), errors.Is(err, core.ErrMalformedPacket):
		return "malformed"
	default:
		return "other"
	}
}
