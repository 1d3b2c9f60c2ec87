// Package parser assembles raw PDF documents from buffered file data. It
// resolves the cross-reference table, loads every reachable object
// (including members of compressed object streams) and falls back to a
// full-file scan when the xref machinery is damaged.
package parser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ygzhang/sealkit/filters"
	"github.com/ygzhang/sealkit/ir/raw"
	"github.com/ygzhang/sealkit/observability"
	"github.com/ygzhang/sealkit/scanner"
	"github.com/ygzhang/sealkit/xref"
)

const defaultMaxObjects = 1 << 20

// Config controls document parsing. Zero values select the defaults.
type Config struct {
	Scanner    scanner.Config
	Limits     filters.Limits
	MaxObjects int
	Logger     observability.Logger
}

// Parser builds a raw.Document from a fully buffered PDF file. Damaged
// objects are skipped with a warning rather than failing the whole load;
// callers that need a specific object discover its absence when they
// resolve it.
type Parser struct {
	cfg      Config
	log      observability.Logger
	pipeline *filters.Pipeline
}

func New(cfg Config) *Parser {
	if cfg.MaxObjects == 0 {
		cfg.MaxObjects = defaultMaxObjects
	}
	if cfg.Scanner == (scanner.Config{}) {
		cfg.Scanner = scanner.DefaultConfig()
	}
	return &Parser{
		cfg:      cfg,
		log:      observability.OrNop(cfg.Logger),
		pipeline: filters.NewDefaultPipeline(cfg.Limits),
	}
}

func (p *Parser) Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	if len(data) == 0 {
		return nil, errors.New("empty input")
	}

	table, trailer, err := p.resolveXRef(ctx, data)
	if err != nil {
		return nil, err
	}

	doc := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object),
		Trailer: trailer,
		Version: headerVersion(data),
	}

	nums := table.Objects()
	if len(nums) > p.cfg.MaxObjects {
		return nil, fmt.Errorf("object count %d exceeds limit %d", len(nums), p.cfg.MaxObjects)
	}

	// First pass: objects stored at byte offsets. Entries the table routes
	// into object streams are collected for the second pass.
	var packed []int
	for _, num := range nums {
		if num == 0 {
			continue
		}
		off, gen, ok := table.Lookup(num)
		if !ok {
			packed = append(packed, num)
			continue
		}
		obj, err := p.loadAt(data, table, num, gen, off)
		if err != nil {
			p.log.Warn("skipping damaged object",
				observability.Int("object", num),
				observability.Error("error", err))
			continue
		}
		doc.Objects[raw.ObjectRef{Num: num, Gen: gen}] = obj
	}

	if err := p.loadPacked(ctx, doc, table, packed); err != nil {
		return nil, err
	}

	if doc.Trailer != nil {
		p.populateMetadata(doc)
	}
	p.log.Debug("document parsed",
		observability.Int("objects", len(doc.Objects)),
		observability.String("xref", table.Type()))
	return doc, nil
}

// resolveXRef resolves the cross-reference chain, rebuilding the table from
// a raw object scan when the startxref machinery is broken.
func (p *Parser) resolveXRef(ctx context.Context, data []byte) (xref.Table, raw.Dictionary, error) {
	resolver := xref.NewResolver(xref.ResolverConfig{Limits: p.cfg.Limits}, ParseAt)
	table, err := resolver.Resolve(ctx, data)
	if err == nil {
		return table, resolver.Trailer(), nil
	}
	p.log.Warn("xref damaged, rebuilding from object scan", observability.Error("error", err))
	table, trailer, rerr := xref.Repair(ctx, data, ParseAt)
	if rerr != nil {
		return nil, nil, fmt.Errorf("resolve xref: %w", err)
	}
	return table, trailer, nil
}

// loadAt parses the indirect object at off. Streams whose /Length is an
// indirect reference get the length resolved through the xref table.
func (p *Parser) loadAt(data []byte, table xref.Table, num, gen int, off int64) (raw.Object, error) {
	resolve := func(ref raw.ObjectRef) (int64, bool) {
		loff, lgen, ok := table.Lookup(ref.Num)
		if !ok {
			return 0, false
		}
		obj, err := parseIndirectAt(data, p.cfg.Scanner, loff, ref.Num, lgen, nil)
		if err != nil {
			return 0, false
		}
		n, ok := obj.(raw.NumberObj)
		if !ok {
			return 0, false
		}
		return n.Int(), true
	}
	return parseIndirectAt(data, p.cfg.Scanner, off, num, gen, resolve)
}

// loadPacked extracts the members of every referenced object stream. Each
// container is decoded once and its members parsed from the decoded buffer.
func (p *Parser) loadPacked(ctx context.Context, doc *raw.Document, table xref.Table, nums []int) error {
	if len(nums) == 0 {
		return nil
	}
	containers := make(map[int][]int)
	for _, num := range nums {
		stm, _, ok := table.ObjStream(num)
		if !ok {
			continue
		}
		containers[stm] = append(containers[stm], num)
	}
	order := make([]int, 0, len(containers))
	for stm := range containers {
		order = append(order, stm)
	}
	sort.Ints(order)

	for _, stm := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		members, err := p.extractObjectStream(ctx, doc, stm)
		if err != nil {
			p.log.Warn("skipping damaged object stream",
				observability.Int("stream", stm),
				observability.Error("error", err))
			continue
		}
		for _, num := range containers[stm] {
			obj, ok := members[num]
			if !ok {
				p.log.Warn("object missing from its object stream",
					observability.Int("object", num),
					observability.Int("stream", stm))
				continue
			}
			// Compressed objects always have generation zero.
			doc.Objects[raw.ObjectRef{Num: num, Gen: 0}] = obj
		}
	}
	return nil
}

// extractObjectStream decodes an /ObjStm container and parses all N members
// from its header of "objnum offset" pairs.
func (p *Parser) extractObjectStream(ctx context.Context, doc *raw.Document, num int) (map[int]raw.Object, error) {
	container, ok := doc.Objects[raw.ObjectRef{Num: num, Gen: 0}]
	if !ok {
		return nil, fmt.Errorf("container %d not loaded", num)
	}
	st, ok := container.(raw.Stream)
	if !ok {
		return nil, fmt.Errorf("container %d is not a stream", num)
	}
	dict := st.Dictionary()
	data := st.RawData()

	names, params := filters.ExtractFilters(dict)
	if len(names) > 0 {
		decoded, err := p.pipeline.Decode(ctx, data, names, params)
		if err != nil {
			return nil, err
		}
		data = decoded
	}

	n := dictInt(dict, "N")
	first := dictInt(dict, "First")
	if n <= 0 || first < 0 || first > int64(len(data)) {
		return nil, fmt.Errorf("bad object stream header: N=%d First=%d", n, first)
	}

	pairs, err := readPairs(data[:first], int(n), p.cfg.Scanner)
	if err != nil {
		return nil, err
	}
	members := make(map[int]raw.Object, n)
	for i := 0; i < int(n); i++ {
		objNum := pairs[2*i]
		off := int64(pairs[2*i+1])
		obj, err := parseValueAt(data, p.cfg.Scanner, first+off)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", objNum, err)
		}
		members[objNum] = obj
	}
	return members, nil
}

// readPairs scans 2n integers from an object stream header.
func readPairs(header []byte, n int, cfg scanner.Config) ([]int, error) {
	s := scanner.New(header, cfg)
	pairs := make([]int, 0, 2*n)
	for len(pairs) < 2*n {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
		v, ok := intToken(tok)
		if !ok {
			continue
		}
		pairs = append(pairs, int(v))
	}
	return pairs, nil
}

func (p *Parser) populateMetadata(doc *raw.Document) {
	infoObj, ok := doc.Trailer.Get(raw.NameLiteral("Info"))
	if !ok {
		return
	}
	ref, ok := infoObj.(raw.RefObj)
	if !ok {
		return
	}
	dict, ok := doc.Objects[ref.R].(*raw.DictObj)
	if !ok {
		return
	}
	md := raw.DocumentMetadata{}
	if v, ok := stringValue(dict, "Title"); ok {
		md.Title = v
	}
	if v, ok := stringValue(dict, "Author"); ok {
		md.Author = v
	}
	if v, ok := stringValue(dict, "Creator"); ok {
		md.Creator = v
	}
	if v, ok := stringValue(dict, "Producer"); ok {
		md.Producer = v
	}
	if v, ok := stringValue(dict, "Subject"); ok {
		md.Subject = v
	}
	if v, ok := stringValue(dict, "Keywords"); ok {
		md.Keywords = strings.Split(v, ",")
	}
	doc.Metadata = md
}

func stringValue(dict *raw.DictObj, key string) (string, bool) {
	obj, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return "", false
	}
	str, ok := obj.(raw.StringObj)
	if !ok {
		return "", false
	}
	return string(str.Value()), true
}

func dictInt(d raw.Dictionary, key string) int64 {
	if d == nil {
		return 0
	}
	v, ok := d.Get(raw.NameLiteral(key))
	if !ok {
		return 0
	}
	if n, ok := v.(raw.NumberObj); ok {
		return n.Int()
	}
	return 0
}

// headerVersion extracts the version from the %PDF- comment on the first line.
func headerVersion(data []byte) string {
	n := len(data)
	if n > 64 {
		n = 64
	}
	line := string(data[:n])
	for _, sep := range []string{"\r\n", "\n", "\r"} {
		if idx := strings.Index(line, sep); idx >= 0 {
			line = line[:idx]
			break
		}
	}
	if strings.HasPrefix(line, "%PDF-") && len(line) >= 8 {
		return strings.TrimSpace(line[5:])
	}
	return ""
}
