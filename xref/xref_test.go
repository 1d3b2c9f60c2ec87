package xref_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/ygzhang/sealkit/ir/raw"
	"github.com/ygzhang/sealkit/parser"
	"github.com/ygzhang/sealkit/xref"
)

func buildSimplePDF() ([]byte, map[int]int64) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	offsets := make(map[int]int64)

	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 2; i++ {
		fmt.Fprintf(buf, "%010d 00000 n \n", offsets[i])
	}
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	buf.WriteString("startxref\n")
	fmt.Fprintf(buf, "%d\n%%%%EOF\n", xrefOffset)

	return buf.Bytes(), offsets
}

func TestResolverParsesXRefTable(t *testing.T) {
	pdf, offsets := buildSimplePDF()

	resolver := xref.NewResolver(xref.ResolverConfig{}, parser.ParseAt)
	table, err := resolver.Resolve(context.Background(), pdf)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Type() != "table" {
		t.Fatalf("expected classic table, got %s", table.Type())
	}

	for obj, off := range offsets {
		gotOff, gen, ok := table.Lookup(obj)
		if !ok {
			t.Fatalf("missing object %d", obj)
		}
		if gotOff != off || gen != 0 {
			t.Fatalf("object %d: expected (%d,0), got (%d,%d)", obj, off, gotOff, gen)
		}
	}
	if _, _, ok := table.Lookup(0); ok {
		t.Fatalf("free head entry should not resolve")
	}
	trailer := resolver.Trailer()
	if trailer == nil {
		t.Fatalf("trailer missing")
	}
	if v, ok := trailer.Get(raw.NameLiteral("Size")); !ok || v.(raw.NumberObj).Int() != 3 {
		t.Fatalf("trailer Size wrong: %#v", v)
	}
}

func buildXRefStreamPDF() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")

	// Object stream holding objects 4 and 5.
	content := "<< /Val 7 >> 5"
	header := "4 0 5 " + fmt.Sprintf("%d ", len("<< /Val 7 >>")+1)
	decoded := header + content
	off3 := buf.Len()
	fmt.Fprintf(buf, "3 0 obj\n<< /Type /ObjStm /N 2 /First %d /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		len(header), len(decoded), decoded)

	xrefOffset := buf.Len()
	entries := buildXRefStreamEntries(7, map[int]int{
		1: off1,
		2: off2,
		3: off3,
		6: xrefOffset,
	}, map[int]packedAt{
		4: {objstm: 3, idx: 0},
		5: {objstm: 3, idx: 1},
	})
	fmt.Fprintf(buf, "6 0 obj\n<< /Type /XRef /Size 7 /Root 1 0 R /W [1 4 1] /Index [0 7] /Length %d >>\nstream\n", len(entries))
	buf.Write(entries)
	buf.WriteString("\nendstream\nendobj\n")

	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

type packedAt struct {
	objstm int
	idx    int
}

func buildXRefStreamEntries(size int, offsets map[int]int, objStreams map[int]packedAt) []byte {
	entrySize := 6 // W [1 4 1]
	total := make([]byte, entrySize*size)
	for obj, off := range offsets {
		idx := obj * entrySize
		total[idx] = 1
		total[idx+1] = byte(off >> 24)
		total[idx+2] = byte(off >> 16)
		total[idx+3] = byte(off >> 8)
		total[idx+4] = byte(off)
		total[idx+5] = 0
	}
	for obj, meta := range objStreams {
		idx := obj * entrySize
		total[idx] = 2
		total[idx+1] = byte(meta.objstm >> 24)
		total[idx+2] = byte(meta.objstm >> 16)
		total[idx+3] = byte(meta.objstm >> 8)
		total[idx+4] = byte(meta.objstm)
		total[idx+5] = byte(meta.idx)
	}
	return total
}

func TestResolverParsesXRefStreamAndObjStm(t *testing.T) {
	data := buildXRefStreamPDF()
	resolver := xref.NewResolver(xref.ResolverConfig{}, parser.ParseAt)
	table, err := resolver.Resolve(context.Background(), data)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Type() != "xref-stream" {
		t.Fatalf("expected xref-stream table, got %s", table.Type())
	}
	if os, idx, ok := table.ObjStream(4); !ok || os != 3 || idx != 0 {
		t.Fatalf("expected obj 4 in objstm 3 idx 0, got %v %v %v", os, idx, ok)
	}
	if os, idx, ok := table.ObjStream(5); !ok || os != 3 || idx != 1 {
		t.Fatalf("expected obj 5 in objstm 3 idx 1, got %v %v %v", os, idx, ok)
	}
	// Packed entries have no byte offset and offset entries have no container.
	if _, _, ok := table.Lookup(4); ok {
		t.Fatalf("packed object should not resolve to an offset")
	}
	if _, _, ok := table.ObjStream(1); ok {
		t.Fatalf("offset object should not resolve to a container")
	}
	off, _, ok := table.Lookup(1)
	if !ok || off == 0 {
		t.Fatalf("object 1 missing offset")
	}
	if got := len(table.Objects()); got != 6 {
		t.Fatalf("expected 6 live objects, got %d", got)
	}
}

func buildHybridXRefPDF() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")

	xrefStreamOff := buf.Len()
	entries := buildXRefStreamEntries(6, map[int]int{
		1: off1,
		2: off2,
		4: xrefStreamOff,
	}, nil)
	fmt.Fprintf(buf, "4 0 obj\n<< /Type /XRef /Size 6 /Root 1 0 R /W [1 4 1] /Index [0 6] /Length %d >>\nstream\n", len(entries))
	buf.Write(entries)
	buf.WriteString("\nendstream\nendobj\n")

	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefStreamOff)

	// Incremental update with a hybrid table referencing the stream.
	obj5Off := buf.Len()
	buf.WriteString("5 0 obj\n<< /Producer (inc) >>\nendobj\n")
	tableOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 1\n0000000000 65535 f \n5 1\n%010d 00000 n \n", obj5Off)
	fmt.Fprintf(buf, "trailer\n<< /Size 6 /Root 1 0 R /Prev %d /XRefStm %d >>\nstartxref\n%d\n%%%%EOF\n",
		xrefStreamOff, xrefStreamOff, tableOff)
	return buf.Bytes()
}

func TestResolverParsesHybridXRef(t *testing.T) {
	data := buildHybridXRefPDF()
	resolver := xref.NewResolver(xref.ResolverConfig{}, parser.ParseAt)
	table, err := resolver.Resolve(context.Background(), data)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// The newest revision is a classic table; older objects are served from
	// the embedded xref stream it points at.
	if table.Type() != "table" {
		t.Fatalf("expected classic table as primary, got %s", table.Type())
	}
	off1, _, ok := table.Lookup(1)
	if !ok || off1 == 0 {
		t.Fatalf("missing object 1 offset")
	}
	off5, _, ok := table.Lookup(5)
	if !ok || off5 == 0 {
		t.Fatalf("missing appended object 5 offset")
	}
	if _, _, ok := table.ObjStream(5); ok {
		t.Fatalf("object 5 should not be packed")
	}
	if resolver.Trailer() == nil {
		t.Fatalf("resolver missing trailer data")
	}
}

func TestResolverErrorsOnInvalidSize(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	objOff := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	xrefOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \n", objOff)
	buf.WriteString("trailer\n<< /Size 1 /Root 1 0 R >>\nstartxref\n")
	fmt.Fprintf(buf, "%d\n%%%%EOF\n", xrefOff)

	resolver := xref.NewResolver(xref.ResolverConfig{}, parser.ParseAt)
	if _, err := resolver.Resolve(context.Background(), buf.Bytes()); err == nil {
		t.Fatalf("expected size validation error")
	}
}

func TestResolverPrevChainNewestWins(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off2a := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 1 >>\nendobj\n")
	off3 := buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /Page >>\nendobj\n")
	xref1 := buf.Len()
	fmt.Fprintf(buf, "xref\n0 1\n0000000000 65535 f \n2 2\n%010d 00000 n \n%010d 00000 n \n", off2a, off3)
	fmt.Fprintf(buf, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref1)

	// Update rewrites object 2 and deletes object 3.
	off2b := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")
	xref2 := buf.Len()
	fmt.Fprintf(buf, "xref\n2 2\n%010d 00000 n \n0000000000 00001 f \n", off2b)
	fmt.Fprintf(buf, "trailer\n<< /Size 4 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", xref1, xref2)

	resolver := xref.NewResolver(xref.ResolverConfig{}, parser.ParseAt)
	table, err := resolver.Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	off, _, ok := table.Lookup(2)
	if !ok {
		t.Fatalf("object 2 missing")
	}
	if off != int64(off2b) {
		t.Fatalf("expected newest offset %d for object 2, got %d", off2b, off)
	}
	// The deletion in the newest revision must shadow the old entry.
	if _, _, ok := table.Lookup(3); ok {
		t.Fatalf("deleted object 3 resurrected through Prev chain")
	}
}

func TestResolverToleratesPrevCycle(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	objOff := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	xrefOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \n", objOff)
	fmt.Fprintf(buf, "trailer\n<< /Size 2 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", xrefOff, xrefOff)

	resolver := xref.NewResolver(xref.ResolverConfig{}, parser.ParseAt)
	table, err := resolver.Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, _, ok := table.Lookup(1); !ok {
		t.Fatalf("object 1 missing after cycle break")
	}
}

func TestRepairRebuildsFromObjectScan(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	buf.WriteString("startxref\ngarbage\n%%EOF\n")

	table, trailer, err := xref.Repair(context.Background(), buf.Bytes(), parser.ParseAt)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if table.Type() != "repair" {
		t.Fatalf("expected repair table, got %s", table.Type())
	}
	off, gen, ok := table.Lookup(1)
	if !ok || off != int64(off1) || gen != 0 {
		t.Fatalf("object 1: got (%d,%d,%v), want (%d,0,true)", off, gen, ok, off1)
	}
	if off, _, ok := table.Lookup(2); !ok || off != int64(off2) {
		t.Fatalf("object 2 not recovered")
	}
	if trailer == nil {
		t.Fatalf("trailer missing")
	}
	if _, ok := trailer.Get(raw.NameLiteral("Root")); !ok {
		t.Fatalf("recovered trailer lost Root")
	}
}

func TestRepairEmptyInput(t *testing.T) {
	if _, _, err := xref.Repair(context.Background(), []byte("no objects here"), parser.ParseAt); err == nil {
		t.Fatalf("expected error when nothing can be recovered")
	}
}
