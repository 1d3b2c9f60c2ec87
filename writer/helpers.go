package writer

import (
	"bytes"
	"compress/zlib"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ygzhang/sealkit/ir/raw"
	"github.com/ygzhang/sealkit/ir/semantic"
)

func rectArray(r semantic.Rectangle) *raw.ArrayObj {
	return raw.NewArray(
		raw.NumberFloat(r.LLX),
		raw.NumberFloat(r.LLY),
		raw.NumberFloat(r.URX),
		raw.NumberFloat(r.URY),
	)
}

func cropSet(r semantic.Rectangle) bool {
	return r.LLX != 0 || r.LLY != 0 || r.URX != 0 || r.URY != 0
}

// normalizeRotation clamps to the quarter turns PDF permits.
func normalizeRotation(rot int) int {
	rot %= 360
	if rot < 0 {
		rot += 360
	}
	if rot%90 != 0 {
		return 0
	}
	return rot
}

// flateEncode compresses with zlib framing, which is what FlateDecode
// consumers expect.
func flateEncode(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// withTrailingSpace guarantees token separation when streams are
// concatenated through a Contents array.
func withTrailingSpace(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	switch data[len(data)-1] {
	case ' ', '\t', '\r', '\n':
		return data
	}
	out := make([]byte, len(data)+1)
	copy(out, data)
	out[len(data)] = '\n'
	return out
}

func fileID(doc *semantic.Document, cfg Config) [2][]byte {
	seed := idSeed(doc, cfg)
	if cfg.Deterministic {
		return [2][]byte{seed, seed}
	}
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		id = seed
	}
	second := make([]byte, len(id))
	copy(second, id)
	return [2][]byte{id, second}
}

func idSeed(doc *semantic.Document, cfg Config) []byte {
	h := sha256.New()
	h.Write([]byte(cfg.Version))
	if doc.Info != nil {
		h.Write([]byte(doc.Info.Title))
		h.Write([]byte(doc.Info.Author))
		h.Write([]byte(doc.Info.Subject))
		h.Write([]byte(doc.Info.Creator))
		h.Write([]byte(doc.Info.Producer))
		h.Write([]byte(strings.Join(doc.Info.Keywords, ",")))
	}
	fmt.Fprintf(h, "%d", len(doc.Pages))
	for _, p := range doc.Pages {
		fmt.Fprintf(h, "%f-%f-%f-%f-%d",
			p.MediaBox.LLX, p.MediaBox.LLY, p.MediaBox.URX, p.MediaBox.URY, p.Rotate)
	}
	return h.Sum(nil)[:16]
}

// imageKey hashes everything that defines an image object so identical
// stamps placed on many pages serialize once.
func imageKey(img *semantic.XObject) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d-%d-%d-%s-%s-", img.Width, img.Height, img.BitsPerComponent, img.ColorSpace, img.Filter)
	h.Write(img.Data)
	if img.SMask != nil {
		io.WriteString(h, imageKey(img.SMask))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedNames(m map[string]*semantic.XObject) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(d *raw.DictObj) []string {
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

