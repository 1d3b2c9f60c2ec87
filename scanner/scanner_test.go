package scanner

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func newScanner(t *testing.T, data string, cfg Config) *Scanner {
	t.Helper()
	return New([]byte(data), cfg)
}

func nextToken(t *testing.T, s *Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func wantInt(t *testing.T, tok Token, v int64) {
	t.Helper()
	if tok.Type != TokenNumber {
		t.Fatalf("expected number token, got %+v", tok)
	}
	if got, ok := tok.Value.(int64); !ok || got != v {
		t.Fatalf("expected integer %d, got %+v", v, tok.Value)
	}
}

func wantKeyword(t *testing.T, tok Token, kw string) {
	t.Helper()
	if tok.Type != TokenKeyword || tok.Value != kw {
		t.Fatalf("expected keyword %q, got %+v", kw, tok)
	}
}

func wantName(t *testing.T, tok Token, name string) {
	t.Helper()
	if tok.Type != TokenName || tok.Value != name {
		t.Fatalf("expected name /%s, got %+v", name, tok)
	}
}

func TestScanner_BasicTokens(t *testing.T) {
	s := newScanner(t, "%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 2 3] /Flag true /Null null >>\nendobj", Config{})

	wantInt(t, nextToken(t, s), 1)
	wantInt(t, nextToken(t, s), 0)
	wantKeyword(t, nextToken(t, s), "obj")
	if tok := nextToken(t, s); tok.Type != TokenDict {
		t.Fatalf("expected dict start, got %+v", tok)
	}
	wantName(t, nextToken(t, s), "Name")
	wantName(t, nextToken(t, s), "Value")
	wantName(t, nextToken(t, s), "Nums")
	if tok := nextToken(t, s); tok.Type != TokenArray {
		t.Fatalf("expected array start, got %+v", tok)
	}
	for i := int64(1); i <= 3; i++ {
		wantInt(t, nextToken(t, s), i)
	}
	wantKeyword(t, nextToken(t, s), "]")
	wantName(t, nextToken(t, s), "Flag")
	if tok := nextToken(t, s); tok.Type != TokenBoolean || tok.Value != true {
		t.Fatalf("expected true boolean, got %+v", tok)
	}
	wantName(t, nextToken(t, s), "Null")
	if tok := nextToken(t, s); tok.Type != TokenNull {
		t.Fatalf("expected null value, got %+v", tok)
	}
	wantKeyword(t, nextToken(t, s), ">>")
	wantKeyword(t, nextToken(t, s), "endobj")
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestScanner_Reals(t *testing.T) {
	s := newScanner(t, "3.14 -0.5 .25 +4.", Config{})
	for _, want := range []float64{3.14, -0.5, 0.25, 4} {
		tok := nextToken(t, s)
		if tok.Type != TokenNumber {
			t.Fatalf("expected number, got %+v", tok)
		}
		if got, ok := tok.Value.(float64); !ok || got != want {
			t.Fatalf("expected real %v, got %+v", want, tok.Value)
		}
	}
}

func TestScanner_NameHexEscapes(t *testing.T) {
	s := newScanner(t, "/Name#20With#23Hash", Config{})
	wantName(t, nextToken(t, s), "Name With#Hash")
}

func TestScanner_LiteralStringEscapes(t *testing.T) {
	s := newScanner(t, "(Hi\\n\\050\\051\\t)", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenString {
		t.Fatalf("expected string, got %+v", tok)
	}
	sv := tok.Value.(StringVal)
	if !bytes.Equal(sv.Bytes, []byte("Hi\n()\t")) {
		t.Fatalf("unexpected literal string: %q", sv.Bytes)
	}
	if sv.Hex {
		t.Fatalf("literal string flagged as hex")
	}
}

func TestScanner_LiteralStringNestingAndContinuation(t *testing.T) {
	s := newScanner(t, "(a (b) c)(Line\\\r\ncontinued)", Config{})
	if sv := nextToken(t, s).Value.(StringVal); string(sv.Bytes) != "a (b) c" {
		t.Fatalf("unexpected nested string: %q", sv.Bytes)
	}
	if sv := nextToken(t, s).Value.(StringVal); string(sv.Bytes) != "Linecontinued" {
		t.Fatalf("unexpected continuation string: %q", sv.Bytes)
	}
}

func TestScanner_HexStringOddLength(t *testing.T) {
	s := newScanner(t, "<48656c6c6f3>", Config{})
	tok := nextToken(t, s)
	sv := tok.Value.(StringVal)
	if tok.Type != TokenString || !bytes.Equal(sv.Bytes, []byte("Hello0")) {
		t.Fatalf("expected padded hex string, got %+v", tok)
	}
	if !sv.Hex {
		t.Fatalf("hex string not flagged as hex")
	}
}

func TestScanner_ReferenceDetection(t *testing.T) {
	s := newScanner(t, "12 5 R %comment\n", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenRef {
		t.Fatalf("expected ref, got %+v", tok)
	}
	if ref := tok.Value.(Ref); ref.Num != 12 || ref.Gen != 5 {
		t.Fatalf("unexpected ref value: %+v", tok.Value)
	}
}

func TestScanner_RefLookaheadReverts(t *testing.T) {
	// Two integers not followed by R must come back as two number tokens.
	s := newScanner(t, "10 20 obj", Config{})
	wantInt(t, nextToken(t, s), 10)
	wantInt(t, nextToken(t, s), 20)
	wantKeyword(t, nextToken(t, s), "obj")

	// R glued to more regular characters is a keyword, not a ref closer.
	s = newScanner(t, "0 1 RG", Config{})
	wantInt(t, nextToken(t, s), 0)
	wantInt(t, nextToken(t, s), 1)
	wantKeyword(t, nextToken(t, s), "RG")
}

func TestScanner_StreamWithLength(t *testing.T) {
	data := "stream\r\nabcde\r\nendstream"
	s := newScanner(t, data, Config{})
	s.SetNextStreamLength(5)
	tok := nextToken(t, s)
	if tok.Type != TokenStream {
		t.Fatalf("expected stream token, got %+v", tok)
	}
	if got := string(tok.Value.([]byte)); got != "abcde" {
		t.Fatalf("unexpected stream payload: %q", got)
	}
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("expected EOF after endstream, got %v", err)
	}
}

func TestScanner_StreamFallbackToEndstream(t *testing.T) {
	data := "stream\nabc\r\nendstream\n"
	s := newScanner(t, data, Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenStream {
		t.Fatalf("expected stream token, got %+v", tok)
	}
	if got := string(tok.Value.([]byte)); got != "abc" {
		t.Fatalf("unexpected stream payload: %q", got)
	}
}

func TestScanner_StreamBinaryPayloadWithLength(t *testing.T) {
	payload := []byte{0x00, 'e', 'n', 'd', 0xff, '\n', 0x01}
	var raw bytes.Buffer
	raw.WriteString("stream\n")
	raw.Write(payload)
	raw.WriteString("\nendstream")
	s := New(raw.Bytes(), Config{})
	s.SetNextStreamLength(int64(len(payload)))
	tok := nextToken(t, s)
	if !bytes.Equal(tok.Value.([]byte), payload) {
		t.Fatalf("binary payload mangled: %v", tok.Value)
	}
}

func TestScanner_MaxStringLength(t *testing.T) {
	s := newScanner(t, "<000102>", Config{MaxStringLength: 2})
	if _, err := s.Next(); err == nil || !strings.Contains(err.Error(), "hex string too long") {
		t.Fatalf("expected hex string too long error, got %v", err)
	}

	s = newScanner(t, "(abcdef)", Config{MaxStringLength: 3})
	if _, err := s.Next(); err == nil || !strings.Contains(err.Error(), "literal string too long") {
		t.Fatalf("expected literal string too long error, got %v", err)
	}
}

func TestScanner_MaxStreamLength(t *testing.T) {
	s := newScanner(t, "stream\nabcdef\nendstream", Config{MaxStreamLength: 3})
	s.SetNextStreamLength(6)
	if _, err := s.Next(); err == nil || !strings.Contains(err.Error(), "stream too long") {
		t.Fatalf("expected stream too long error, got %v", err)
	}
}

func TestScanner_UnterminatedStrings(t *testing.T) {
	s := newScanner(t, "(abc", Config{})
	if _, err := s.Next(); err == nil || !strings.Contains(err.Error(), "unterminated literal string") {
		t.Fatalf("expected unterminated literal string error, got %v", err)
	}

	s = newScanner(t, "<abc", Config{})
	if _, err := s.Next(); err == nil || !strings.Contains(err.Error(), "unterminated hex string") {
		t.Fatalf("expected unterminated hex string error, got %v", err)
	}
}

func TestScanner_DepthLimits(t *testing.T) {
	s := newScanner(t, "<< /A << /B << >> >> >>", Config{MaxDictDepth: 2})
	var err error
	for err == nil {
		_, err = s.Next()
	}
	if !strings.Contains(err.Error(), "dict depth exceeded") {
		t.Fatalf("expected dict depth exceeded, got %v", err)
	}
}

func TestScanner_SeekRescan(t *testing.T) {
	s := newScanner(t, "1 2 3", Config{})
	wantInt(t, nextToken(t, s), 1)
	pos := s.Position()
	wantInt(t, nextToken(t, s), 2)
	if err := s.Seek(pos); err != nil {
		t.Fatalf("seek: %v", err)
	}
	wantInt(t, nextToken(t, s), 2)
	if err := s.Seek(999); err == nil {
		t.Fatalf("expected seek out of range error")
	}
}
