package writer

import (
	"sort"
	"strings"

	"github.com/ygzhang/sealkit/ir/raw"
	"github.com/ygzhang/sealkit/ir/semantic"
)

// objectBuilder assembles the indirect object set for one output file.
type objectBuilder struct {
	cfg     Config
	objects map[raw.ObjectRef]raw.Object
	objNum  int

	fontRefs    map[string]raw.ObjectRef
	xobjectRefs map[string]raw.ObjectRef
	// copied memoizes deep copies per source document so shared
	// objects keep being shared and reference cycles terminate.
	copied map[*raw.Document]map[raw.ObjectRef]raw.ObjectRef
}

func newObjectBuilder(cfg Config) *objectBuilder {
	return &objectBuilder{
		cfg:         cfg,
		objects:     make(map[raw.ObjectRef]raw.Object),
		objNum:      1,
		fontRefs:    make(map[string]raw.ObjectRef),
		xobjectRefs: make(map[string]raw.ObjectRef),
		copied:      make(map[*raw.Document]map[raw.ObjectRef]raw.ObjectRef),
	}
}

func (b *objectBuilder) nextRef() raw.ObjectRef {
	ref := raw.ObjectRef{Num: b.objNum, Gen: 0}
	b.objNum++
	return ref
}

func (b *objectBuilder) build(doc *semantic.Document) (raw.ObjectRef, *raw.ObjectRef, error) {
	catalogRef := b.nextRef()
	pagesRef := b.nextRef()
	infoRef := b.buildInfo(doc.Info)

	pageRefs := make([]raw.ObjectRef, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		var ref raw.ObjectRef
		var err error
		if p.Source != nil && p.Source.Doc != nil && p.Source.Dict != nil {
			ref, err = b.carryPage(p, pagesRef)
		} else {
			ref, err = b.buildPage(p, pagesRef)
		}
		if err != nil {
			return raw.ObjectRef{}, nil, err
		}
		pageRefs = append(pageRefs, ref)
	}

	kids := raw.NewArray()
	for _, r := range pageRefs {
		kids.Append(raw.Ref(r.Num, r.Gen))
	}
	pagesDict := raw.Dict()
	pagesDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pagesDict.Set(raw.NameLiteral("Count"), raw.NumberInt(int64(len(pageRefs))))
	pagesDict.Set(raw.NameLiteral("Kids"), kids)
	b.objects[pagesRef] = pagesDict

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))
	b.objects[catalogRef] = catalog
	return catalogRef, infoRef, nil
}

func (b *objectBuilder) buildInfo(info *semantic.DocumentInfo) *raw.ObjectRef {
	if info == nil {
		return nil
	}
	dict := raw.Dict()
	set := func(key, val string) {
		if val != "" {
			dict.Set(raw.NameLiteral(key), raw.Str([]byte(val)))
		}
	}
	set("Title", info.Title)
	set("Author", info.Author)
	set("Subject", info.Subject)
	set("Creator", info.Creator)
	set("Producer", info.Producer)
	if len(info.Keywords) > 0 {
		dict.Set(raw.NameLiteral("Keywords"), raw.Str([]byte(strings.Join(info.Keywords, ","))))
	}
	if dict.Len() == 0 {
		return nil
	}
	ref := b.nextRef()
	b.objects[ref] = dict
	return &ref
}

// buildPage emits a page constructed in memory.
func (b *objectBuilder) buildPage(p *semantic.Page, parent raw.ObjectRef) (raw.ObjectRef, error) {
	ref := b.nextRef()
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	dict.Set(raw.NameLiteral("Parent"), raw.Ref(parent.Num, parent.Gen))
	b.setGeometry(dict, p)

	res, err := b.buildResources(p.Resources)
	if err != nil {
		return raw.ObjectRef{}, err
	}
	if res != nil {
		dict.Set(raw.NameLiteral("Resources"), res)
	}

	var refs []raw.ObjectRef
	for _, cs := range p.Contents {
		data := serializeContentStream(cs)
		if len(data) == 0 {
			continue
		}
		r, err := b.addContent(data)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		refs = append(refs, r)
	}
	b.setContents(dict, refs)

	b.objects[ref] = dict
	return ref, nil
}

// carryPage re-emits a parsed page. The original dictionary and every
// object reachable from it are copied with fresh numbers; geometry,
// contents and resources are then rebuilt from the semantic page so
// appended overlays take effect.
func (b *objectBuilder) carryPage(p *semantic.Page, parent raw.ObjectRef) (raw.ObjectRef, error) {
	src := p.Source
	ref := b.nextRef()
	if src.Ref.Num != 0 {
		b.memo(src.Doc)[src.Ref] = ref
	}

	dict := raw.Dict()
	for _, k := range sortedKeys(src.Dict) {
		switch k {
		case "Type", "Parent", "Contents", "Resources", "MediaBox", "CropBox", "Rotate":
			continue
		}
		dict.Set(raw.NameLiteral(k), b.copyValue(src.Doc, src.Dict.KV[k]))
	}
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	dict.Set(raw.NameLiteral("Parent"), raw.Ref(parent.Num, parent.Gen))
	b.setGeometry(dict, p)

	res, err := b.carryResources(src, p.Resources)
	if err != nil {
		return raw.ObjectRef{}, err
	}
	if res != nil {
		dict.Set(raw.NameLiteral("Resources"), res)
	}

	refs, err := b.carryContents(p)
	if err != nil {
		return raw.ObjectRef{}, err
	}
	b.setContents(dict, refs)

	b.objects[ref] = dict
	return ref, nil
}

// carryContents re-emits the page's streams. When overlays were
// appended, the original content is bracketed with q/Q so a dangling
// transform in the source file cannot displace the overlay.
func (b *objectBuilder) carryContents(p *semantic.Page) ([]raw.ObjectRef, error) {
	appended := p.Appended() > 0

	var refs []raw.ObjectRef
	add := func(data []byte) error {
		r, err := b.addContent(data)
		if err != nil {
			return err
		}
		refs = append(refs, r)
		return nil
	}

	if appended {
		if err := add([]byte("q\n")); err != nil {
			return nil, err
		}
	}
	for _, cs := range p.Contents {
		if cs.RawBytes == nil {
			continue
		}
		if err := add(withTrailingSpace(cs.RawBytes)); err != nil {
			return nil, err
		}
	}
	if appended {
		if err := add([]byte("Q\n")); err != nil {
			return nil, err
		}
		for _, cs := range p.Contents {
			if cs.RawBytes != nil {
				continue
			}
			data := serializeContentStream(cs)
			if len(data) == 0 {
				continue
			}
			if err := add(data); err != nil {
				return nil, err
			}
		}
	}
	return refs, nil
}

func (b *objectBuilder) setGeometry(dict *raw.DictObj, p *semantic.Page) {
	dict.Set(raw.NameLiteral("MediaBox"), rectArray(p.MediaBox))
	if p.CropBox != p.MediaBox && cropSet(p.CropBox) {
		dict.Set(raw.NameLiteral("CropBox"), rectArray(p.CropBox))
	}
	if rot := normalizeRotation(p.Rotate); rot != 0 {
		dict.Set(raw.NameLiteral("Rotate"), raw.NumberInt(int64(rot)))
	}
}

func (b *objectBuilder) setContents(dict *raw.DictObj, refs []raw.ObjectRef) {
	switch len(refs) {
	case 0:
	case 1:
		dict.Set(raw.NameLiteral("Contents"), raw.Ref(refs[0].Num, refs[0].Gen))
	default:
		arr := raw.NewArray()
		for _, r := range refs {
			arr.Append(raw.Ref(r.Num, r.Gen))
		}
		dict.Set(raw.NameLiteral("Contents"), arr)
	}
}

func (b *objectBuilder) addContent(data []byte) (raw.ObjectRef, error) {
	dict := raw.Dict()
	if b.cfg.Compression != 0 {
		enc, err := flateEncode(data, b.cfg.Compression)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		data = enc
		dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	}
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
	ref := b.nextRef()
	b.objects[ref] = raw.NewStream(dict, data)
	return ref, nil
}

// buildResources emits a resource dictionary for a constructed page.
func (b *objectBuilder) buildResources(res *semantic.Resources) (*raw.DictObj, error) {
	if res == nil {
		return nil, nil
	}
	dict := raw.Dict()
	if err := b.addResourceEntries(dict, res, nil); err != nil {
		return nil, err
	}
	if dict.Len() == 0 {
		return nil, nil
	}
	return dict, nil
}

// carryResources copies the page's original resource dictionary and
// splices in entries that exist only in the semantic model, which is
// exactly the set added after parsing.
func (b *objectBuilder) carryResources(src *semantic.PageSource, res *semantic.Resources) (*raw.DictObj, error) {
	merged := raw.Dict()
	if res != nil && res.Raw != nil {
		if orig, ok := src.Doc.Resolve(res.Raw).(*raw.DictObj); ok {
			for _, k := range sortedKeys(orig) {
				merged.Set(raw.NameLiteral(k), b.copyValue(src.Doc, orig.KV[k]))
			}
		}
	}
	if err := b.addResourceEntries(merged, res, src); err != nil {
		return nil, err
	}
	if merged.Len() == 0 {
		return nil, nil
	}
	return merged, nil
}

// addResourceEntries fills dict from the semantic resource maps,
// skipping names the dictionary already carries.
func (b *objectBuilder) addResourceEntries(dict *raw.DictObj, res *semantic.Resources, src *semantic.PageSource) error {
	if res == nil {
		return nil
	}

	if len(res.XObjects) > 0 {
		sub := b.ensureSubdict(dict, "XObject")
		for _, name := range sortedNames(res.XObjects) {
			if _, ok := sub.Get(raw.NameLiteral(name)); ok {
				continue
			}
			ref, err := b.ensureImage(res.XObjects[name])
			if err != nil {
				return err
			}
			sub.Set(raw.NameLiteral(name), raw.Ref(ref.Num, ref.Gen))
		}
	}

	if len(res.ExtGStates) > 0 {
		sub := b.ensureSubdict(dict, "ExtGState")
		for name, gs := range res.ExtGStates {
			if _, ok := sub.Get(raw.NameLiteral(name)); ok {
				continue
			}
			sub.Set(raw.NameLiteral(name), gsDict(gs))
		}
	}

	if len(res.Fonts) > 0 {
		sub := b.ensureSubdict(dict, "Font")
		names := make([]string, 0, len(res.Fonts))
		for name := range res.Fonts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, ok := sub.Get(raw.NameLiteral(name)); ok {
				continue
			}
			ref := b.ensureFont(res.Fonts[name])
			sub.Set(raw.NameLiteral(name), raw.Ref(ref.Num, ref.Gen))
		}
	}
	return nil
}

// ensureSubdict returns the named sub-dictionary of parent, following
// an already-copied reference if needed, creating the dict otherwise.
func (b *objectBuilder) ensureSubdict(parent *raw.DictObj, key string) *raw.DictObj {
	if v, ok := parent.Get(raw.NameLiteral(key)); ok {
		switch t := v.(type) {
		case *raw.DictObj:
			return t
		case raw.RefObj:
			if d, ok := b.objects[t.R].(*raw.DictObj); ok {
				return d
			}
		}
	}
	d := raw.Dict()
	parent.Set(raw.NameLiteral(key), d)
	return d
}

// ensureImage emits an image XObject, deduplicating identical pixel
// data across pages. SMasks recurse through the same path.
func (b *objectBuilder) ensureImage(img *semantic.XObject) (raw.ObjectRef, error) {
	key := imageKey(img)
	if ref, ok := b.xobjectRefs[key]; ok {
		return ref, nil
	}
	ref := b.nextRef()
	b.xobjectRefs[key] = ref

	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("XObject"))
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Image"))
	dict.Set(raw.NameLiteral("Width"), raw.NumberInt(int64(img.Width)))
	dict.Set(raw.NameLiteral("Height"), raw.NumberInt(int64(img.Height)))
	cs := img.ColorSpace
	if cs == "" {
		cs = "DeviceRGB"
	}
	dict.Set(raw.NameLiteral("ColorSpace"), raw.NameLiteral(cs))
	bpc := img.BitsPerComponent
	if bpc == 0 {
		bpc = 8
	}
	dict.Set(raw.NameLiteral("BitsPerComponent"), raw.NumberInt(int64(bpc)))

	data := img.Data
	switch {
	case img.Filter != "":
		// Already encoded, e.g. a passthrough DCT payload.
		dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral(img.Filter))
	case b.cfg.Compression != 0:
		enc, err := flateEncode(data, b.cfg.Compression)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		data = enc
		dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	}

	if img.SMask != nil {
		mref, err := b.ensureImage(img.SMask)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		dict.Set(raw.NameLiteral("SMask"), raw.Ref(mref.Num, mref.Gen))
	}
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
	b.objects[ref] = raw.NewStream(dict, data)
	return ref, nil
}

func (b *objectBuilder) ensureFont(base string) raw.ObjectRef {
	if base == "" {
		base = "Helvetica"
	}
	if ref, ok := b.fontRefs[base]; ok {
		return ref
	}
	ref := b.nextRef()
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	dict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(base))
	b.objects[ref] = dict
	b.fontRefs[base] = ref
	return ref
}

func gsDict(gs semantic.ExtGState) *raw.DictObj {
	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("ExtGState"))
	if gs.FillAlpha != nil {
		d.Set(raw.NameLiteral("ca"), raw.NumberFloat(*gs.FillAlpha))
	}
	if gs.StrokeAlpha != nil {
		d.Set(raw.NameLiteral("CA"), raw.NumberFloat(*gs.StrokeAlpha))
	}
	return d
}

// copyValue deep-copies a value from src into the output object space,
// rewriting references as it goes.
func (b *objectBuilder) copyValue(src *raw.Document, obj raw.Object) raw.Object {
	switch v := obj.(type) {
	case raw.RefObj:
		return b.copyRef(src, v.R)
	case *raw.ArrayObj:
		out := raw.NewArray()
		for _, it := range v.Items {
			out.Append(b.copyValue(src, it))
		}
		return out
	case *raw.DictObj:
		out := raw.Dict()
		for _, k := range sortedKeys(v) {
			out.Set(raw.NameLiteral(k), b.copyValue(src, v.KV[k]))
		}
		return out
	case *raw.StreamObj:
		dict, _ := b.copyValue(src, v.Dict).(*raw.DictObj)
		return raw.NewStream(dict, v.Data)
	default:
		return obj
	}
}

func (b *objectBuilder) copyRef(src *raw.Document, r raw.ObjectRef) raw.Object {
	m := b.memo(src)
	if dst, ok := m[r]; ok {
		return raw.Ref(dst.Num, dst.Gen)
	}
	target, ok := src.Objects[r]
	if !ok {
		return raw.NullObj{}
	}
	dst := b.nextRef()
	m[r] = dst
	b.objects[dst] = b.copyValue(src, target)
	return raw.Ref(dst.Num, dst.Gen)
}

func (b *objectBuilder) memo(src *raw.Document) map[raw.ObjectRef]raw.ObjectRef {
	m, ok := b.copied[src]
	if !ok {
		m = make(map[raw.ObjectRef]raw.ObjectRef)
		b.copied[src] = m
	}
	return m
}
