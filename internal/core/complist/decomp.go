package complist

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
)

// Encoding is the encoding type (ET) of a compressed list.
type Encoding uint8

const (
	EncodingGeneric      Encoding = 0
	EncodingInsertion    Encoding = 1
	EncodingRemoval      Encoding = 2
	EncodingRemoveInsert Encoding = 3
)

func (e Encoding) String() string {
	switch e {
	case EncodingGeneric:
		return "generic"
	case EncodingInsertion:
		return "insertion"
	case EncodingRemoval:
		return "removal"
	case EncodingRemoveInsert:
		return "remove-insert"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// DefaultRefConfirmations is how many identical lists in a row promote a
// list to reference.
const DefaultRefConfirmations = 5

// Config sizes a Decompressor.
type Config struct {
	TableSize        int
	WindowSize       int
	RefConfirmations int
}

// DefaultConfig returns the usual list decompression settings.
func DefaultConfig() Config {
	return Config{
		TableSize:        DefaultTableSize,
		WindowSize:       DefaultWindowSize,
		RefConfirmations: DefaultRefConfirmations,
	}
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.TableSize < MinTableSize || c.TableSize > MaxTableSize {
		return fmt.Errorf("%w: translation table size %d not in [%d, %d]",
			core.ErrConfigInvalid, c.TableSize, MinTableSize, MaxTableSize)
	}
	if c.WindowSize < 1 || c.WindowSize > MaxWindowSize {
		return fmt.Errorf("%w: list window size %d not in [1, %d]", core.ErrConfigInvalid, c.WindowSize, MaxWindowSize)
	}
	if c.RefConfirmations < 1 {
		return fmt.Errorf("%w: reference confirmations must be positive", core.ErrConfigInvalid)
	}
	return nil
}

// Decompressor holds the list state of one IP header of a context.
type Decompressor struct {
	cfg    Config
	table  *Table
	window *Window

	ref           *List
	current       *List
	confirmations int
	active        bool
	decoded       int // lists committed since the last reset
	lastSize      int // byte length of the last committed list
}

// New returns a list decompressor with an empty table.
func New(cfg Config) (*Decompressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	table, err := NewTable(cfg.TableSize)
	if err != nil {
		return nil, err
	}
	window, err := NewWindow(cfg.WindowSize)
	if err != nil {
		return nil, err
	}
	return &Decompressor{cfg: cfg, table: table, window: window}, nil
}

// CheckIndex reports whether index names a known translation table slot.
func (d *Decompressor) CheckIndex(index int) bool {
	return d.table.Known(index)
}

// CreateItem parses the item at the front of data and installs it at index.
// It returns the item size.
func (d *Decompressor) CreateItem(data []byte, index int) (int, error) {
	item, n, err := ParseItem(data)
	if err != nil {
		return 0, err
	}
	if err := d.table.Set(index, item); err != nil {
		return 0, err
	}
	return n, nil
}

// Active reports whether a list was ever decoded.
func (d *Decompressor) Active() bool { return d.active }

// Current returns the last decoded list.
func (d *Decompressor) Current() *List {
	if d.current == nil {
		return NewList()
	}
	return d.current
}

// Reference returns the confirmed reference list.
func (d *Decompressor) Reference() (*List, bool) {
	return d.ref, d.ref != nil
}

// Confirmations returns how many identical lists were decoded in a row.
func (d *Decompressor) Confirmations() int { return d.confirmations }

// Decoded returns the number of lists committed since the last reset.
func (d *Decompressor) Decoded() int { return d.decoded }

// LastSize returns the byte length of the extension headers of the last
// committed list.
func (d *Decompressor) LastSize() int { return d.lastSize }

// Table exposes the translation table.
func (d *Decompressor) Table() *Table { return d.table }

// Reset forgets all list state.
func (d *Decompressor) Reset() {
	d.table.Reset()
	d.window.Reset()
	d.ref, d.current = nil, nil
	d.confirmations = 0
	d.active = false
	d.decoded, d.lastSize = 0, 0
}

type stagedItem struct {
	index int
	item  *Item
}

// Update is a decoded list not yet applied to the decompressor.
type Update struct {
	Encoding Encoding
	List     *List
	staged   []stagedItem
}

// Decode parses one compressed list from the front of data. Nothing is
// changed in d until the returned Update is passed to Commit.
// It returns the update and the number of bytes used.
func (d *Decompressor) Decode(data []byte) (*Update, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty list field", core.ErrMalformedList)
	}

	r := &listReader{d: d, data: data}
	u := &Update{Encoding: Encoding(data[0] >> 6)}
	r.u = u

	var err error
	switch u.Encoding {
	case EncodingGeneric:
		u.List, err = r.generic()
	case EncodingInsertion:
		u.List, err = r.insertion()
	case EncodingRemoval:
		u.List, err = r.removal()
	case EncodingRemoveInsert:
		u.List, err = r.removeInsert()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s list: %w", u.Encoding, err)
	}
	return u, r.pos, nil
}

// Commit applies a decoded list: items carried inline are installed, the
// list is kept in the window and counted towards reference promotion.
func (d *Decompressor) Commit(u *Update) {
	for _, s := range u.staged {
		d.table.install(s.index, s.item)
	}
	d.window.Store(u.List)

	if d.current != nil && d.current.Equal(u.List) {
		d.confirmations++
	} else {
		d.confirmations = 1
	}
	d.current = u.List
	d.active = true
	d.decoded++
	d.lastSize = u.List.Size()

	if d.ref == nil || d.confirmations >= d.cfg.RefConfirmations {
		d.ref = u.List
	}
}

// EncodeExtension writes the current list as an IPv6 extension header
// chain. The Next Header byte of each item is set to the type of the
// following item, and to upper for the last one. It returns the number of
// bytes written and the protocol the IPv6 header must announce.
func (d *Decompressor) EncodeExtension(dst []byte, upper uint8) (int, uint8, error) {
	if !d.active || d.current == nil {
		return 0, upper, nil
	}
	return EncodeList(d.current, dst, upper)
}

// EncodeList is EncodeExtension for an arbitrary list.
func EncodeList(l *List, dst []byte, upper uint8) (int, uint8, error) {
	elems := l.Elements()
	if len(elems) == 0 {
		return 0, upper, nil
	}
	if size := l.Size(); len(dst) < size {
		return 0, upper, fmt.Errorf("%w: extension chain needs %d bytes, have %d", core.ErrInvalidArgument, size, len(dst))
	}

	n := 0
	for i, e := range elems {
		copy(dst[n:], e.Item.Data)
		if i+1 < len(elems) {
			dst[n] = uint8(elems[i+1].Item.Kind)
		} else {
			dst[n] = upper
		}
		n += e.Item.Len()
	}
	return n, uint8(elems[0].Item.Kind), nil
}

type xi struct {
	present bool
	index   int
}

type listReader struct {
	d    *Decompressor
	u    *Update
	data []byte
	pos  int
}

func (r *listReader) next() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("%w: truncated at byte %d", core.ErrMalformedList, r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// header reads the first octet fields and the optional gen_id.
func (r *listReader) header() (low4 uint8, ps bool, l *List, err error) {
	b, err := r.next()
	if err != nil {
		return 0, false, nil, err
	}
	l = NewList()
	if b&0x20 != 0 {
		gen, err := r.next()
		if err != nil {
			return 0, false, nil, err
		}
		l.GenID, l.HasGen = gen, true
	}
	return b & 0x0F, b&0x10 != 0, l, nil
}

func (r *listReader) refList() (*List, error) {
	id, err := r.next()
	if err != nil {
		return nil, err
	}
	if l, ok := r.d.window.Lookup(id); ok {
		return l, nil
	}
	if r.d.ref != nil && r.d.ref.HasGen && r.d.ref.GenID == id {
		return r.d.ref, nil
	}
	return nil, fmt.Errorf("%w: ref_id %d", core.ErrUnknownGeneration, id)
}

// mask reads a 7 or 15 bit mask.
func (r *listReader) mask() ([]bool, error) {
	b, err := r.next()
	if err != nil {
		return nil, err
	}
	if b&0x80 == 0 {
		bits := make([]bool, 7)
		for i := range bits {
			bits[i] = b&(0x40>>i) != 0
		}
		return bits, nil
	}
	b2, err := r.next()
	if err != nil {
		return nil, err
	}
	v := uint16(b&0x7F)<<8 | uint16(b2)
	bits := make([]bool, 15)
	for i := range bits {
		bits[i] = v&(0x4000>>i) != 0
	}
	return bits, nil
}

func decodeXI(v uint8, wide bool) xi {
	if wide {
		return xi{present: v&0x80 != 0, index: int(v & 0x7F)}
	}
	return xi{present: v&0x08 != 0, index: int(v & 0x07)}
}

// xiList reads n XIs packed as 4-bit nibbles (high nibble first) or octets.
func (r *listReader) xiList(n int, wide bool) ([]xi, error) {
	out := make([]xi, 0, n)
	if wide {
		for i := 0; i < n; i++ {
			b, err := r.next()
			if err != nil {
				return nil, err
			}
			out = append(out, decodeXI(b, true))
		}
		return out, nil
	}
	for i := 0; i < n; i += 2 {
		b, err := r.next()
		if err != nil {
			return nil, err
		}
		out = append(out, decodeXI(b>>4, false))
		if i+1 < n {
			out = append(out, decodeXI(b&0x0F, false))
		}
	}
	return out, nil
}

// resolve turns XIs into items, reading the inline ones in order.
func (r *listReader) resolve(xis []xi) ([]Element, error) {
	out := make([]Element, 0, len(xis))
	for _, x := range xis {
		if x.index >= r.d.table.Size() {
			return nil, fmt.Errorf("%w: index %d outside translation table", core.ErrMalformedList, x.index)
		}
		if !x.present {
			item, ok := r.lookup(x.index)
			if !ok {
				return nil, fmt.Errorf("%w: index %d not known", core.ErrMalformedList, x.index)
			}
			out = append(out, Element{Item: item, Index: x.index})
			continue
		}
		item, n, err := ParseItem(r.data[r.pos:])
		if err != nil {
			return nil, err
		}
		r.pos += n
		r.u.staged = append(r.u.staged, stagedItem{index: x.index, item: item})
		out = append(out, Element{Item: item, Index: x.index})
	}
	return out, nil
}

func (r *listReader) lookup(index int) (*Item, bool) {
	for i := len(r.u.staged) - 1; i >= 0; i-- {
		if r.u.staged[i].index == index {
			return r.u.staged[i].item, true
		}
	}
	if !r.d.table.Known(index) {
		return nil, false
	}
	e, _ := r.d.table.Get(index)
	return e.Item, true
}

func (r *listReader) generic() (*List, error) {
	count, wide, l, err := r.header()
	if err != nil {
		return nil, err
	}
	xis, err := r.xiList(int(count), wide)
	if err != nil {
		return nil, err
	}
	elems, err := r.resolve(xis)
	if err != nil {
		return nil, err
	}
	for _, e := range elems {
		l.InsertTail(e.Item, e.Index)
	}
	return l, nil
}

// insertXIs reads the XI list of an insertion scheme. When PS is 0 the
// first XI sits in the low nibble of the first octet.
func (r *listReader) insertXIs(first uint8, wide bool, mask []bool) ([]Element, error) {
	k := 0
	for _, bit := range mask {
		if bit {
			k++
		}
	}
	if k == 0 {
		return nil, nil
	}
	var xis []xi
	if wide {
		var err error
		if xis, err = r.xiList(k, true); err != nil {
			return nil, err
		}
	} else {
		rest, err := r.xiList(k-1, false)
		if err != nil {
			return nil, err
		}
		xis = append([]xi{decodeXI(first, false)}, rest...)
	}
	return r.resolve(xis)
}

func applyInsertion(base []Element, mask []bool, inserted []Element, l *List) error {
	bi, ii := 0, 0
	exhausted := false
	for _, bit := range mask {
		if bit {
			if exhausted {
				return fmt.Errorf("%w: insertion past the end of the reference list", core.ErrMalformedList)
			}
			l.InsertTail(inserted[ii].Item, inserted[ii].Index)
			ii++
			continue
		}
		if bi < len(base) {
			l.InsertTail(base[bi].Item, base[bi].Index)
			bi++
		} else {
			exhausted = true
		}
	}
	for ; bi < len(base); bi++ {
		l.InsertTail(base[bi].Item, base[bi].Index)
	}
	return nil
}

func applyRemoval(base []Element, mask []bool) []Element {
	out := make([]Element, 0, len(base))
	for i, e := range base {
		if i < len(mask) && mask[i] {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (r *listReader) insertion() (*List, error) {
	first, wide, l, err := r.header()
	if err != nil {
		return nil, err
	}
	ref, err := r.refList()
	if err != nil {
		return nil, err
	}
	mask, err := r.mask()
	if err != nil {
		return nil, err
	}
	inserted, err := r.insertXIs(first, wide, mask)
	if err != nil {
		return nil, err
	}
	if err := applyInsertion(ref.Elements(), mask, inserted, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *listReader) removal() (*List, error) {
	count, _, l, err := r.header()
	if err != nil {
		return nil, err
	}
	ref, err := r.refList()
	if err != nil {
		return nil, err
	}
	if int(count) != ref.Len() {
		return nil, fmt.Errorf("%w: removal count %d, reference holds %d", core.ErrMalformedList, count, ref.Len())
	}
	mask, err := r.mask()
	if err != nil {
		return nil, err
	}
	for _, e := range applyRemoval(ref.Elements(), mask) {
		l.InsertTail(e.Item, e.Index)
	}
	return l, nil
}

func (r *listReader) removeInsert() (*List, error) {
	first, wide, l, err := r.header()
	if err != nil {
		return nil, err
	}
	ref, err := r.refList()
	if err != nil {
		return nil, err
	}
	removeMask, err := r.mask()
	if err != nil {
		return nil, err
	}
	insertMask, err := r.mask()
	if err != nil {
		return nil, err
	}
	inserted, err := r.insertXIs(first, wide, insertMask)
	if err != nil {
		return nil, err
	}
	if err := applyInsertion(applyRemoval(ref.Elements(), removeMask), insertMask, inserted, l); err != nil {
		return nil, err
	}
	return l, nil
}
