// Package writer serializes a semantic document back into PDF bytes.
//
// Pages constructed in memory are emitted from their semantic fields.
// Pages parsed from an existing file keep their original objects: the
// writer deep-copies them into the new file, renumbering references,
// and splices appended content and resources on top.
package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ygzhang/sealkit/ir/raw"
	"github.com/ygzhang/sealkit/ir/semantic"
)

type Config struct {
	// Version is the PDF header version, "1.7" when empty.
	Version string
	// Compression is the zlib level for content and image streams.
	// Zero disables compression entirely.
	Compression int
	// Deterministic derives the file ID from document content instead
	// of random bytes, making output reproducible.
	Deterministic bool
}

type Writer struct{ cfg Config }

func New(cfg Config) *Writer {
	if cfg.Version == "" {
		cfg.Version = "1.7"
	}
	if cfg.Compression > 9 {
		cfg.Compression = 9
	}
	if cfg.Compression < -2 {
		cfg.Compression = -1
	}
	return &Writer{cfg: cfg}
}

// Write serializes doc to out.
func (w *Writer) Write(ctx context.Context, doc *semantic.Document, out io.Writer) error {
	data, err := w.Bytes(ctx, doc)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// Bytes serializes doc into a complete PDF file.
func (w *Writer) Bytes(ctx context.Context, doc *semantic.Document) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("no document")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := newObjectBuilder(w.cfg)
	catalogRef, infoRef, err := b.build(doc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n", w.cfg.Version)
	// Binary marker comment keeps transfer tools from treating the
	// file as text.
	buf.WriteString("%\xE2\xE3\xCF\xD3\n")

	ordered := make([]raw.ObjectRef, 0, len(b.objects))
	for ref := range b.objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Num < ordered[j].Num })

	offsets := make(map[int]int64, len(ordered))
	for _, ref := range ordered {
		offsets[ref.Num] = int64(buf.Len())
		buf.Write(serializeObject(ref, b.objects[ref]))
	}

	xrefOff := buf.Len()
	maxNum := ordered[len(ordered)-1].Num
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	id := fileID(doc, w.cfg)
	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(maxNum+1)))
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, catalogRef.Gen))
	if infoRef != nil {
		trailer.Set(raw.NameLiteral("Info"), raw.Ref(infoRef.Num, infoRef.Gen))
	}
	trailer.Set(raw.NameLiteral("ID"), raw.NewArray(raw.HexStr(id[0]), raw.HexStr(id[1])))

	buf.WriteString("trailer\n")
	buf.Write(serializeValue(trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOff)
	return buf.Bytes(), nil
}
