// Package xref locates and parses PDF cross-reference information: classic
// tables, cross-reference streams, hybrid files carrying both, and the Prev
// chains incremental updates leave behind.
package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/ygzhang/sealkit/filters"
	"github.com/ygzhang/sealkit/ir/raw"
)

// Table answers where an object lives: at a byte offset (Lookup) or inside
// an object stream (ObjStream).
type Table interface {
	Lookup(objNum int) (offset int64, gen int, found bool)
	ObjStream(objNum int) (streamNum int, idx int, found bool)
	Objects() []int
	Type() string
}

// ParseFunc parses the single object starting at off. The parser package
// provides one; the indirection keeps this package below it.
type ParseFunc func(data []byte, off int64) (raw.Object, error)

type ResolverConfig struct {
	MaxXRefDepth int
	Limits       filters.Limits
}

// Resolver walks the cross-reference chain of one file. Not safe for
// concurrent use; Trailer is valid after a successful Resolve.
type Resolver struct {
	cfg      ResolverConfig
	parse    ParseFunc
	pipeline *filters.Pipeline
	trailer  *raw.DictObj
}

func NewResolver(cfg ResolverConfig, parse ParseFunc) *Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 32
	}
	return &Resolver{
		cfg:      cfg,
		parse:    parse,
		pipeline: filters.NewDefaultPipeline(cfg.Limits),
	}
}

// Trailer returns the merged trailer dictionary, oldest entries shadowed by
// the newest revision.
func (r *Resolver) Trailer() raw.Dictionary {
	if r.trailer == nil {
		return nil
	}
	return r.trailer
}

// Resolve follows startxref and every Prev link, merging sections newest
// first so updated entries shadow originals.
func (r *Resolver) Resolve(ctx context.Context, data []byte) (Table, error) {
	offset, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}

	entries := make(map[int]entry)
	merged := raw.Dict()
	visited := make(map[int64]bool)
	primary := ""

	for depth := 0; offset >= 0; depth++ {
		if depth >= r.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref chain deeper than %d", r.cfg.MaxXRefDepth)
		}
		if visited[offset] {
			break
		}
		visited[offset] = true
		if offset <= 0 || offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset out of range: %d", offset)
		}

		sec, err := r.parseSection(ctx, data, offset)
		if err != nil {
			return nil, err
		}
		if primary == "" {
			primary = sec.typ
		}
		mergeEntries(entries, sec.entries)
		mergeTrailer(merged, sec.trailer)

		// Hybrid file: the classic section names a cross-reference stream
		// carrying the entries old readers cannot see.
		if xs := trailerInt(sec.trailer, "XRefStm", -1); xs > 0 && !visited[xs] {
			visited[xs] = true
			if ssec, err := r.parseStreamSection(ctx, data, xs); err == nil {
				mergeEntries(entries, ssec.entries)
				mergeTrailer(merged, ssec.trailer)
			}
		}

		offset = trailerInt(sec.trailer, "Prev", -1)
	}

	if len(entries) == 0 {
		return nil, errors.New("empty xref table")
	}
	if size := trailerInt(merged, "Size", 0); size > 0 {
		for num, e := range entries {
			if e.typ != 0 && num >= int(size) {
				return nil, fmt.Errorf("xref entry %d outside declared size %d", num, size)
			}
		}
	}

	r.trailer = merged
	return &table{entries: entries, typ: primary}, nil
}

type entry struct {
	typ       int // 0 free, 1 at offset, 2 in object stream
	offset    int64
	gen       int
	streamNum int
	streamIdx int
}

type section struct {
	typ     string
	entries map[int]entry
	trailer *raw.DictObj
}

func (r *Resolver) parseSection(ctx context.Context, data []byte, offset int64) (section, error) {
	pos := skipWS(data, offset)
	if bytes.HasPrefix(data[pos:], []byte("xref")) {
		return r.parseClassicSection(data, pos)
	}
	return r.parseStreamSection(ctx, data, offset)
}

func (r *Resolver) parseClassicSection(data []byte, pos int64) (section, error) {
	sec := section{typ: "table", entries: make(map[int]entry)}
	pos += int64(len("xref"))
	for {
		pos = skipWS(data, pos)
		if pos >= int64(len(data)) {
			return sec, errors.New("xref section missing trailer")
		}
		if bytes.HasPrefix(data[pos:], []byte("trailer")) {
			pos += int64(len("trailer"))
			break
		}
		start, next, err := readInt(data, pos)
		if err != nil {
			return sec, fmt.Errorf("xref subsection start: %w", err)
		}
		count, next, err := readInt(data, next)
		if err != nil {
			return sec, fmt.Errorf("xref subsection count: %w", err)
		}
		pos = next
		for i := int64(0); i < count; i++ {
			f1, p, err := readInt(data, pos)
			if err != nil {
				return sec, fmt.Errorf("xref entry offset: %w", err)
			}
			f2, p, err := readInt(data, p)
			if err != nil {
				return sec, fmt.Errorf("xref entry gen: %w", err)
			}
			p = skipWS(data, p)
			if p >= int64(len(data)) {
				return sec, errors.New("xref entry truncated")
			}
			kind := data[p]
			p++
			num := int(start + i)
			switch kind {
			case 'n':
				sec.entries[num] = entry{typ: 1, offset: f1, gen: int(f2)}
			case 'f':
				sec.entries[num] = entry{typ: 0}
			default:
				return sec, fmt.Errorf("xref entry kind %q", kind)
			}
			pos = p
		}
	}

	pos = skipWS(data, pos)
	obj, err := r.parse(data, pos)
	if err != nil {
		return sec, fmt.Errorf("parse trailer: %w", err)
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return sec, fmt.Errorf("trailer is %T, want dictionary", obj)
	}
	sec.trailer = dict
	return sec, nil
}

func (r *Resolver) parseStreamSection(ctx context.Context, data []byte, offset int64) (section, error) {
	sec := section{typ: "xref-stream", entries: make(map[int]entry)}
	obj, err := r.parse(data, offset)
	if err != nil {
		return sec, fmt.Errorf("parse xref stream: %w", err)
	}
	stm, ok := obj.(raw.Stream)
	if !ok {
		return sec, fmt.Errorf("object at %d is %T, want xref stream", offset, obj)
	}
	dict, ok := stm.Dictionary().(*raw.DictObj)
	if !ok {
		return sec, errors.New("xref stream missing dictionary")
	}

	payload := stm.RawData()
	if names, params := filters.ExtractFilters(dict); len(names) > 0 {
		payload, err = r.pipeline.Decode(ctx, payload, names, params)
		if err != nil {
			return sec, fmt.Errorf("decode xref stream: %w", err)
		}
	}

	widths, err := streamWidths(dict)
	if err != nil {
		return sec, err
	}
	size := trailerInt(dict, "Size", 0)
	segments, err := streamIndex(dict, size)
	if err != nil {
		return sec, err
	}

	entrySize := widths[0] + widths[1] + widths[2]
	cursor := 0
	for _, seg := range segments {
		for i := int64(0); i < seg.count; i++ {
			if cursor+entrySize > len(payload) {
				return sec, errors.New("xref stream truncated")
			}
			f0 := int64(1) // absent type field defaults to in-use
			if widths[0] > 0 {
				f0 = beUint(payload[cursor : cursor+widths[0]])
			}
			f1 := beUint(payload[cursor+widths[0] : cursor+widths[0]+widths[1]])
			f2 := beUint(payload[cursor+widths[0]+widths[1] : cursor+entrySize])
			cursor += entrySize

			num := int(seg.start + i)
			switch f0 {
			case 0:
				sec.entries[num] = entry{typ: 0}
			case 1:
				sec.entries[num] = entry{typ: 1, offset: f1, gen: int(f2)}
			case 2:
				sec.entries[num] = entry{typ: 2, streamNum: int(f1), streamIdx: int(f2)}
			}
		}
	}
	sec.trailer = dict
	return sec, nil
}

type segment struct{ start, count int64 }

func streamWidths(dict *raw.DictObj) ([3]int, error) {
	var w [3]int
	obj, ok := dict.Get(raw.NameObj{Val: "W"})
	if !ok {
		return w, errors.New("xref stream missing W")
	}
	arr, ok := obj.(*raw.ArrayObj)
	if !ok || len(arr.Items) < 3 {
		return w, errors.New("xref stream W malformed")
	}
	for i := 0; i < 3; i++ {
		n, ok := arr.Items[i].(raw.Number)
		if !ok || n.Int() < 0 || n.Int() > 8 {
			return w, errors.New("xref stream W malformed")
		}
		w[i] = int(n.Int())
	}
	if w[1] == 0 {
		return w, errors.New("xref stream W has zero-width offsets")
	}
	return w, nil
}

func streamIndex(dict *raw.DictObj, size int64) ([]segment, error) {
	obj, ok := dict.Get(raw.NameObj{Val: "Index"})
	if !ok {
		if size <= 0 {
			return nil, errors.New("xref stream missing Size")
		}
		return []segment{{start: 0, count: size}}, nil
	}
	arr, ok := obj.(*raw.ArrayObj)
	if !ok || len(arr.Items)%2 != 0 {
		return nil, errors.New("xref stream Index malformed")
	}
	segments := make([]segment, 0, len(arr.Items)/2)
	for i := 0; i < len(arr.Items); i += 2 {
		s, ok1 := arr.Items[i].(raw.Number)
		c, ok2 := arr.Items[i+1].(raw.Number)
		if !ok1 || !ok2 || s.Int() < 0 || c.Int() < 0 {
			return nil, errors.New("xref stream Index malformed")
		}
		segments = append(segments, segment{start: s.Int(), count: c.Int()})
	}
	return segments, nil
}

func beUint(b []byte) int64 {
	var v int64
	for _, x := range b {
		v = v<<8 | int64(x)
	}
	return v
}

func mergeEntries(dst, src map[int]entry) {
	for num, e := range src {
		if _, ok := dst[num]; !ok {
			dst[num] = e
		}
	}
}

func mergeTrailer(dst, src *raw.DictObj) {
	if src == nil {
		return
	}
	for k, v := range src.KV {
		if _, ok := dst.KV[k]; !ok {
			dst.KV[k] = v
		}
	}
}

func trailerInt(d *raw.DictObj, key string, def int64) int64 {
	if d == nil {
		return def
	}
	obj, ok := d.Get(raw.NameObj{Val: key})
	if !ok {
		return def
	}
	n, ok := obj.(raw.Number)
	if !ok {
		return def
	}
	return n.Int()
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	v, _, err := readInt(data, int64(idx+len("startxref")))
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	return v, nil
}

func readInt(data []byte, pos int64) (int64, int64, error) {
	pos = skipWS(data, pos)
	start := pos
	for pos < int64(len(data)) && data[pos] >= '0' && data[pos] <= '9' {
		pos++
	}
	if pos == start {
		return 0, pos, fmt.Errorf("expected integer at offset %d", start)
	}
	v, err := strconv.ParseInt(string(data[start:pos]), 10, 64)
	return v, pos, err
}

func skipWS(data []byte, pos int64) int64 {
	for pos < int64(len(data)) {
		switch data[pos] {
		case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
			pos++
		default:
			return pos
		}
	}
	return pos
}

type table struct {
	entries map[int]entry
	typ     string
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.typ != 1 {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) ObjStream(objNum int) (int, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.typ != 2 {
		return 0, 0, false
	}
	return e.streamNum, e.streamIdx, true
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.typ != 0 {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

func (t *table) Type() string { return t.typ }
