// Package decomp implements the per-CID decompression context of RFC 3095
// for the IP-only, UDP, UDP-Lite and RTP profiles.
//
// Every packet is decoded against a scratch copy of the context. The copy is
// written back only once the rebuilt headers pass the packet CRC, so a
// rejected packet never changes what the context knows.
package decomp

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/cid"
	"firestige.xyz/rohc/internal/core/complist"
	"firestige.xyz/rohc/internal/core/lsb"
)

// Result describes one decompressed packet.
type Result struct {
	Kind core.PacketKind
	SN   uint32
	// Data is the rebuilt IP packet, nil for an IR without dynamic chain.
	Data []byte
	// Lists holds the encoding of every extension header list received.
	Lists  []complist.Encoding
	Repair Repair
}

// Context is the decompression state bound to one CID.
type Context struct {
	cid     uint16
	profile Profile
	cfg     Config

	state core.ContextState
	st    state

	lists [MaxIPHeaders]*complist.Decompressor
	sn    lsb.Decoder
	ipid  [MaxIPHeaders]lsb.Decoder
	corr  correction
}

// New creates an empty context for cid compressed with profile id.
func New(cid uint16, id core.ProfileID, cfg Config) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := NewProfile(id)
	if err != nil {
		return nil, err
	}

	c := &Context{
		cid:     cid,
		profile: p,
		cfg:     cfg,
		sn:      lsb.NewDecoder(16, lsb.ShiftSN),
	}
	for i := range c.lists {
		if c.lists[i], err = complist.New(cfg.List); err != nil {
			return nil, err
		}
		c.ipid[i] = lsb.NewIPIDDecoder()
	}
	return c, nil
}

func (c *Context) CID() uint16              { return c.cid }
func (c *Context) Profile() core.ProfileID  { return c.profile.ID() }
func (c *Context) State() core.ContextState { return c.state }

// Failures returns the CRC failures counted since the last accepted packet.
func (c *Context) Failures() int { return c.corr.failures }

// InterArrival returns the averaged time between accepted packets.
func (c *Context) InterArrival() uint32 { return c.corr.interArrival }

// Upper returns the transport fields known to the context.
func (c *Context) Upper() Upper { return c.st.upper }

// List returns the extension list decompressor of IP header i.
func (c *Context) List(i int) *complist.Decompressor { return c.lists[i] }

// SN returns the SN of the last accepted packet.
func (c *Context) SN() (uint32, bool) { return c.sn.Ref() }

// Headers returns a copy of the IP headers known to the context, outermost
// first.
func (c *Context) Headers() []HeaderChange {
	out := make([]HeaderChange, c.st.ipCount)
	copy(out, c.st.ip[:c.st.ipCount])
	return out
}

// Destroy forgets everything learnt for the CID.
func (c *Context) Destroy() {
	for i := range c.lists {
		c.lists[i].Reset()
		c.ipid[i] = lsb.NewIPIDDecoder()
	}
	c.st = state{}
	c.sn = lsb.NewDecoder(16, lsb.ShiftSN)
	c.corr = correction{}
	c.state = core.NoContext
}

// PacketProfile returns the profile announced by an IR or IR-DYN packet.
func PacketProfile(h cid.Header) (core.ProfileID, bool) {
	if (h.Type&typeIRMask != typeIR && h.Type != typeIRDyn) || len(h.Body) == 0 {
		return 0, false
	}
	return core.ProfileID(h.Body[0]), true
}

// Decode decompresses one packet. raw is the packet as received and h its
// CID header as returned by cid.Decode; arrival is the receive time in the
// caller's monotonic unit.
func (c *Context) Decode(raw []byte, h cid.Header, arrival uint32) (*Result, error) {
	kind, err := Classify(h.Type, h.Body, c.profile.RTP(), c.st.ipidTarget() >= 0)
	if err != nil {
		return nil, err
	}

	switch kind {
	case core.PacketIR:
		return c.DecodeIR(raw, h, arrival)
	case core.PacketIRDyn:
		return c.decodeIRDyn(raw, h, arrival)
	}
	return c.decodeUO(kind, h, arrival)
}

// irHeader checks the profile and CRC octets shared by IR and IR-DYN and
// returns the offset of the CRC octet in raw.
func (c *Context) irHeader(raw []byte, h cid.Header) (int, error) {
	if len(h.Body) < 2 {
		return 0, fmt.Errorf("%w: IR header without profile and CRC", core.ErrPacketTooShort)
	}
	if p := core.ProfileID(h.Body[0]); p != c.profile.ID() {
		return 0, fmt.Errorf("%w: packet announces %s, context uses %s", core.ErrProfileMismatch, p, c.profile.ID())
	}
	return len(raw) - len(h.Body) + 1, nil
}

// DecodeIR decompresses an IR packet. Without dynamic chain only the static
// part of the context is refreshed and no packet is produced.
func (c *Context) DecodeIR(raw []byte, h cid.Header, arrival uint32) (*Result, error) {
	crcPos, err := c.irHeader(raw, h)
	if err != nil {
		return nil, err
	}
	dynamic := h.Type&irDynamicOn != 0

	st := c.st
	r := &reader{data: h.Body, pos: 2}
	if err := c.parseStaticChain(r, &st); err != nil {
		return nil, fmt.Errorf("IR static chain: %w", err)
	}
	var sn uint32
	if dynamic {
		if sn, err = c.parseDynamicChain(r, &st); err != nil {
			return nil, fmt.Errorf("IR dynamic chain: %w", err)
		}
	}

	if got := irCRC(raw, h.Start, crcPos, crcPos-1+r.pos); got != h.Body[1] {
		return nil, fmt.Errorf("%w: IR CRC 0x%02x, computed 0x%02x", core.ErrCRCMismatch, h.Body[1], got)
	}

	if !dynamic {
		c.st = st
		c.state = core.StaticContext
		return &Result{Kind: core.PacketIR}, nil
	}
	return c.finishIR(core.PacketIR, &st, sn, r.rest(), arrival)
}

func (c *Context) decodeIRDyn(raw []byte, h cid.Header, arrival uint32) (*Result, error) {
	if c.state == core.NoContext {
		return nil, fmt.Errorf("%w: IR-DYN before any static chain", core.ErrNoContext)
	}
	crcPos, err := c.irHeader(raw, h)
	if err != nil {
		return nil, err
	}

	st := c.st
	r := &reader{data: h.Body, pos: 2}
	sn, err := c.parseDynamicChain(r, &st)
	if err != nil {
		return nil, fmt.Errorf("IR-DYN dynamic chain: %w", err)
	}
	if got := irCRC(raw, h.Start, crcPos, crcPos-1+r.pos); got != h.Body[1] {
		return nil, fmt.Errorf("%w: IR-DYN CRC 0x%02x, computed 0x%02x", core.ErrCRCMismatch, h.Body[1], got)
	}
	return c.finishIR(core.PacketIRDyn, &st, sn, r.rest(), arrival)
}

func (c *Context) finishIR(kind core.PacketKind, st *state, sn uint32, payload []byte, arrival uint32) (*Result, error) {
	if o, ok := c.profile.(irObserver); ok {
		o.observeIR(&st.upper, len(payload))
	}
	data, err := c.build(st, sn, payload)
	if err != nil {
		return nil, err
	}
	lists := c.commit(st, sn, arrival)
	return &Result{Kind: kind, SN: sn, Data: data, Lists: lists}, nil
}

func (c *Context) decodeUO(kind core.PacketKind, h cid.Header, arrival uint32) (*Result, error) {
	switch {
	case c.state == core.NoContext:
		return nil, fmt.Errorf("%w: %s without context", core.ErrNoContext, kind)
	case c.state == core.StaticContext && !kind.IsUOR2():
		return nil, fmt.Errorf("%w: %s needs full context", core.ErrContextDamaged, kind)
	}
	refSN, ok := c.sn.Ref()
	if !ok {
		return nil, fmt.Errorf("%w: %s before any SN", core.ErrSNDecodeAmbiguous, kind)
	}

	st := c.st
	r := &reader{data: h.Body}
	b, err := parseBase(kind, h.Type, r, c.profile.RTP())
	if err != nil {
		return nil, err
	}
	if err := b.routeIPID(&st); err != nil {
		return nil, err
	}
	if b.Ext {
		if err := c.parseExtension(b, r, &st); err != nil {
			return nil, fmt.Errorf("%s extension: %w", kind, err)
		}
	}
	if err := c.parseTail(b, r, &st); err != nil {
		return nil, err
	}
	payload := r.rest()

	sn := c.decodeSN(refSN, b)
	res := &Result{Kind: kind, SN: sn}
	try, data, ok, err := c.attempt(&st, b, sn, refSN, payload)
	if err != nil {
		return nil, err
	}

	if !ok && c.corr.mayHaveWrapped(arrival, b.SN.Bits) {
		wrapped := (sn + 1<<b.SN.Bits) & 0xFFFF
		if try, data, ok, err = c.attempt(&st, b, wrapped, refSN, payload); err != nil {
			return nil, err
		}
		if ok {
			res.SN, res.Repair = wrapped, RepairWraparound
		}
	}
	if old, hasOld := c.sn.OldRef(); !ok && hasOld {
		if again := c.decodeSN(old, b); again != sn {
			if try, data, ok, err = c.attempt(&st, b, again, old, payload); err != nil {
				return nil, err
			}
			if ok {
				res.SN, res.Repair = again, RepairOldReference
			}
		}
	}
	if !ok {
		return nil, c.crcFailed(kind)
	}

	res.Data = data
	res.Lists = c.commit(try, res.SN, arrival)
	return res, nil
}

// attempt decodes the values of a UO packet for one SN candidate, rebuilds
// the packet and checks its CRC.
func (c *Context) attempt(st *state, b *Bits, sn, refSN uint32, payload []byte) (*state, []byte, bool, error) {
	try := *st
	if err := c.decodeValues(&try, b, sn, refSN); err != nil {
		return nil, nil, false, err
	}
	data, err := c.build(&try, sn, payload)
	if err != nil {
		return nil, nil, false, err
	}
	v, err := headerCRC(b.CRCKind, data, try.ipCount, c.profile)
	if err != nil {
		return nil, nil, false, err
	}
	return &try, data, v == b.CRC, nil
}

// commit makes st the context state after an accepted packet.
func (c *Context) commit(st *state, sn uint32, arrival uint32) []complist.Encoding {
	var lists []complist.Encoding
	for i := 0; i < st.ipCount; i++ {
		if u := st.updates[i]; u != nil {
			c.lists[i].Commit(u)
			lists = append(lists, u.Encoding)
			st.updates[i] = nil
		}
		if h := &st.ip[i]; h.SequentialID() {
			c.ipid[i].Set(uint32(lsb.IPIDOffset(h.ID, uint16(sn))))
		}
	}
	c.profile.Commit(&st.upper)
	c.st = *st
	c.sn.Set(sn)
	c.corr.accept(arrival)
	c.state = core.FullContext
	return lists
}
