package semantic

import (
	"context"
	"errors"

	"github.com/ygzhang/sealkit/ir/decoded"
	"github.com/ygzhang/sealkit/ir/raw"
)

// NewBuilder returns the default semantic builder.
func NewBuilder() Builder { return &builder{} }

type builder struct{}

func (b *builder) Build(ctx context.Context, dec *decoded.Document) (*Document, error) {
	if dec == nil || dec.Raw == nil {
		return nil, errors.New("no decoded document")
	}
	doc := &Document{
		Version: dec.Raw.Version,
		Info:    infoFrom(dec.Raw.Metadata),
	}
	if dec.Raw.Trailer == nil {
		return doc, nil
	}

	rootObj, ok := dec.Raw.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return nil, errors.New("trailer missing Root")
	}
	w := &walker{dec: dec, visited: make(map[raw.ObjectRef]bool)}
	catalog, ok := w.resolve(rootObj).(*raw.DictObj)
	if !ok {
		return nil, errors.New("catalog is not a dictionary")
	}
	pagesObj, ok := catalog.Get(raw.NameLiteral("Pages"))
	if !ok {
		return nil, errors.New("catalog missing Pages")
	}
	pages, err := w.pages(pagesObj, inherited{})
	if err != nil {
		return nil, err
	}
	for i, p := range pages {
		p.Index = i
	}
	doc.Pages = pages
	return doc, nil
}

// inherited carries the page attributes a Pages node passes down to its
// kids (PDF 7.7.3.4).
type inherited struct {
	MediaBox  *Rectangle
	CropBox   *Rectangle
	Rotate    *int
	Resources raw.Object
}

type walker struct {
	dec     *decoded.Document
	visited map[raw.ObjectRef]bool
}

func (w *walker) resolve(obj raw.Object) raw.Object {
	return w.dec.Raw.Resolve(obj)
}

// pages traverses the page tree and returns a flat list in document order.
// Damaged kids are skipped; a kid referencing an ancestor ends that branch.
func (w *walker) pages(obj raw.Object, inh inherited) ([]*Page, error) {
	if ref, ok := obj.(raw.Reference); ok {
		if w.visited[ref.Ref()] {
			return nil, errors.New("page tree cycle")
		}
		w.visited[ref.Ref()] = true
	}
	dict, ok := w.resolve(obj).(*raw.DictObj)
	if !ok {
		return nil, errors.New("page tree node is not a dictionary")
	}

	if mb, ok := dict.Get(raw.NameLiteral("MediaBox")); ok {
		if r := rectFrom(w.resolve(mb)); r != nil {
			inh.MediaBox = r
		}
	}
	if cb, ok := dict.Get(raw.NameLiteral("CropBox")); ok {
		if r := rectFrom(w.resolve(cb)); r != nil {
			inh.CropBox = r
		}
	}
	if rot, ok := dict.Get(raw.NameLiteral("Rotate")); ok {
		if n, ok := w.resolve(rot).(raw.NumberObj); ok {
			v := int(n.Int())
			inh.Rotate = &v
		}
	}
	if res, ok := dict.Get(raw.NameLiteral("Resources")); ok {
		inh.Resources = res
	}

	if isLeaf(dict) {
		return []*Page{w.page(dict, obj, inh)}, nil
	}

	kidsObj, ok := dict.Get(raw.NameLiteral("Kids"))
	if !ok {
		return nil, errors.New("pages node missing Kids")
	}
	kids, ok := w.resolve(kidsObj).(*raw.ArrayObj)
	if !ok {
		return nil, errors.New("Kids is not an array")
	}
	var out []*Page
	for _, kid := range kids.Items {
		sub, err := w.pages(kid, inh)
		if err != nil {
			continue
		}
		out = append(out, sub...)
	}
	return out, nil
}

// isLeaf distinguishes a Page from a Pages node. Nodes without /Type are
// classified by the presence of /Kids.
func isLeaf(dict *raw.DictObj) bool {
	if t, ok := dict.Get(raw.NameLiteral("Type")); ok {
		if name, ok := t.(raw.NameObj); ok {
			return name.Val == "Page"
		}
	}
	_, hasKids := dict.Get(raw.NameLiteral("Kids"))
	return !hasKids
}

func (w *walker) page(dict *raw.DictObj, src raw.Object, inh inherited) *Page {
	page := &Page{}

	if inh.MediaBox != nil {
		page.MediaBox = *inh.MediaBox
	} else {
		// US Letter when the tree never declares a MediaBox.
		page.MediaBox = Rectangle{0, 0, 612, 792}
	}
	if inh.CropBox != nil {
		page.CropBox = *inh.CropBox
	} else {
		page.CropBox = page.MediaBox
	}
	if inh.Rotate != nil {
		page.Rotate = *inh.Rotate
	}
	if inh.Resources != nil {
		page.Resources = w.resources(inh.Resources)
	}
	page.Contents = w.contents(dict)

	source := &PageSource{Doc: w.dec.Raw, Dict: dict}
	if ref, ok := src.(raw.Reference); ok {
		source.Ref = ref.Ref()
	}
	page.Source = source
	return page
}

func (w *walker) contents(dict *raw.DictObj) []ContentStream {
	obj, ok := dict.Get(raw.NameLiteral("Contents"))
	if !ok {
		return nil
	}
	items := []raw.Object{obj}
	if arr, ok := w.resolve(obj).(*raw.ArrayObj); ok {
		items = arr.Items
	}
	var out []ContentStream
	for _, item := range items {
		if data, ok := w.streamBytes(item); ok {
			out = append(out, ContentStream{RawBytes: data})
		}
	}
	return out
}

// streamBytes returns the decoded payload of a stream-valued object,
// preferring the decoded layer's copy.
func (w *walker) streamBytes(obj raw.Object) ([]byte, bool) {
	if ref, ok := obj.(raw.Reference); ok {
		if st, ok := w.dec.Streams[ref.Ref()]; ok {
			return st.Data(), true
		}
	}
	if st, ok := w.resolve(obj).(raw.Stream); ok {
		return st.RawData(), true
	}
	return nil, false
}

func (w *walker) resources(obj raw.Object) *Resources {
	res := NewResources()
	res.Raw = obj
	dict, ok := w.resolve(obj).(*raw.DictObj)
	if !ok {
		return res
	}

	if gsObj, ok := dict.Get(raw.NameLiteral("ExtGState")); ok {
		if gsDict, ok := w.resolve(gsObj).(*raw.DictObj); ok {
			for k, v := range gsDict.KV {
				if gs, ok := w.extGState(v); ok {
					res.ExtGStates[k] = gs
				}
			}
		}
	}
	if xoObj, ok := dict.Get(raw.NameLiteral("XObject")); ok {
		if xoDict, ok := w.resolve(xoObj).(*raw.DictObj); ok {
			for k, v := range xoDict.KV {
				if img, ok := w.imageXObject(v); ok {
					res.XObjects[k] = img
				}
			}
		}
	}
	if fObj, ok := dict.Get(raw.NameLiteral("Font")); ok {
		if fDict, ok := w.resolve(fObj).(*raw.DictObj); ok {
			for k, v := range fDict.KV {
				if font, ok := w.resolve(v).(*raw.DictObj); ok {
					res.Fonts[k] = dictName(font, "BaseFont")
				}
			}
		}
	}
	return res
}

func (w *walker) extGState(obj raw.Object) (ExtGState, bool) {
	dict, ok := w.resolve(obj).(*raw.DictObj)
	if !ok {
		return ExtGState{}, false
	}
	gs := ExtGState{}
	if v, ok := dict.Get(raw.NameLiteral("ca")); ok {
		if n, ok := v.(raw.NumberObj); ok {
			val := n.Float()
			gs.FillAlpha = &val
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("CA")); ok {
		if n, ok := v.(raw.NumberObj); ok {
			val := n.Float()
			gs.StrokeAlpha = &val
		}
	}
	return gs, true
}

// imageXObject models an image resource. Form XObjects are not modeled;
// they carry through the raw layer untouched.
func (w *walker) imageXObject(obj raw.Object) (*XObject, bool) {
	var data []byte
	var residual []string
	if ref, ok := obj.(raw.Reference); ok {
		if st, ok := w.dec.Streams[ref.Ref()]; ok {
			data = st.Data()
			residual = st.Filters()
		}
	}
	st, ok := w.resolve(obj).(*raw.StreamObj)
	if !ok {
		return nil, false
	}
	if sub := dictName(st.Dict, "Subtype"); sub != "" && sub != "Image" {
		return nil, false
	}
	if data == nil {
		data = st.Data
	}

	img := &XObject{
		Width:            int(dictInt(st.Dict, "Width", 0)),
		Height:           int(dictInt(st.Dict, "Height", 0)),
		BitsPerComponent: int(dictInt(st.Dict, "BitsPerComponent", 8)),
		ColorSpace:       dictName(st.Dict, "ColorSpace"),
		Data:             data,
	}
	if len(residual) > 0 {
		img.Filter = residual[0]
	}
	if smObj, ok := st.Dict.Get(raw.NameLiteral("SMask")); ok {
		if sm, ok := w.imageXObject(smObj); ok {
			img.SMask = sm
		}
	}
	return img, true
}

func infoFrom(md raw.DocumentMetadata) *DocumentInfo {
	return &DocumentInfo{
		Title:    md.Title,
		Author:   md.Author,
		Subject:  md.Subject,
		Creator:  md.Creator,
		Producer: md.Producer,
		Keywords: md.Keywords,
	}
}

func rectFrom(obj raw.Object) *Rectangle {
	nums := numbersFrom(obj)
	if len(nums) < 4 {
		return nil
	}
	// Normalize corner order so Width/Height stay positive.
	r := &Rectangle{LLX: nums[0], LLY: nums[1], URX: nums[2], URY: nums[3]}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r
}

func numbersFrom(obj raw.Object) []float64 {
	arr, ok := obj.(*raw.ArrayObj)
	if !ok {
		return nil
	}
	var nums []float64
	for _, item := range arr.Items {
		if n, ok := item.(raw.NumberObj); ok {
			nums = append(nums, n.Float())
		}
	}
	return nums
}

func dictInt(d *raw.DictObj, key string, def int64) int64 {
	if v, ok := d.Get(raw.NameLiteral(key)); ok {
		if n, ok := v.(raw.NumberObj); ok {
			return n.Int()
		}
	}
	return def
}

func dictName(d *raw.DictObj, key string) string {
	if v, ok := d.Get(raw.NameLiteral(key)); ok {
		if n, ok := v.(raw.NameObj); ok {
			return n.Val
		}
	}
	return ""
}
