package parser

import (
	"errors"
	"fmt"

	"github.com/ygzhang/sealkit/ir/raw"
	"github.com/ygzhang/sealkit/scanner"
)

// lengthFunc resolves an indirect /Length reference to a byte count. A nil
// lengthFunc leaves the scanner searching for the endstream marker instead.
type lengthFunc func(ref raw.ObjectRef) (int64, bool)

// tokenSource wraps a scanner with one-token pushback so the recursive
// descent can peek across value boundaries.
type tokenSource struct {
	s   *scanner.Scanner
	buf []scanner.Token
}

func (t *tokenSource) next() (scanner.Token, error) {
	if l := len(t.buf); l > 0 {
		tok := t.buf[l-1]
		t.buf = t.buf[:l-1]
		return tok, nil
	}
	return t.s.Next()
}

func (t *tokenSource) unread(tok scanner.Token) { t.buf = append(t.buf, tok) }

// ParseAt parses the object starting at off. It accepts both indirect
// objects ("N G obj ... endobj") and bare values such as trailer
// dictionaries, which is the shape the xref resolver hands it.
func ParseAt(data []byte, off int64) (raw.Object, error) {
	return parseAt(data, scanner.DefaultConfig(), off, nil)
}

func parseAt(data []byte, cfg scanner.Config, off int64, resolve lengthFunc) (raw.Object, error) {
	s := scanner.New(data, cfg)
	if err := s.Seek(off); err != nil {
		return nil, err
	}
	tr := &tokenSource{s: s}

	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	if n, ok := intToken(tok); ok {
		tok2, err2 := tr.next()
		if err2 == nil {
			if g, ok2 := intToken(tok2); ok2 {
				tok3, err3 := tr.next()
				if err3 == nil && isKeyword(tok3, "obj") {
					return parseBody(tr, s, int(n), int(g), resolve)
				}
				if err3 == nil {
					tr.unread(tok3)
				}
			}
			tr.unread(tok2)
		}
	}
	tr.unread(tok)
	return parseValue(tr)
}

// parseIndirectAt parses an indirect object at off and validates its header
// against the expected number and generation from the xref table.
func parseIndirectAt(data []byte, cfg scanner.Config, off int64, num, gen int, resolve lengthFunc) (raw.Object, error) {
	s := scanner.New(data, cfg)
	if err := s.Seek(off); err != nil {
		return nil, err
	}
	tr := &tokenSource{s: s}

	n, err := expectInt(tr)
	if err != nil {
		return nil, fmt.Errorf("object header: %w", err)
	}
	g, err := expectInt(tr)
	if err != nil {
		return nil, fmt.Errorf("object header: %w", err)
	}
	if int(n) != num || int(g) != gen {
		return nil, fmt.Errorf("object header mismatch: got %d %d, want %d %d", n, g, num, gen)
	}
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	if !isKeyword(tok, "obj") {
		return nil, errors.New("expected obj keyword")
	}
	return parseBody(tr, s, num, gen, resolve)
}

// parseValueAt parses a bare value at off. Object stream members have this
// shape: no header, no trailing endobj, never a stream.
func parseValueAt(data []byte, cfg scanner.Config, off int64) (raw.Object, error) {
	s := scanner.New(data, cfg)
	if err := s.Seek(off); err != nil {
		return nil, err
	}
	return parseValue(&tokenSource{s: s})
}

// parseBody parses the value after an "N G obj" header and attaches stream
// payloads to dictionaries that have one.
func parseBody(tr *tokenSource, s *scanner.Scanner, num, gen int, resolve lengthFunc) (raw.Object, error) {
	body, err := parseValue(tr)
	if err != nil {
		return nil, err
	}
	dict, ok := body.(*raw.DictObj)
	if !ok {
		return body, nil
	}

	// A stream keyword may follow the dictionary. The declared /Length
	// decides how the payload is consumed; an unresolvable length falls
	// back to searching for endstream.
	length := int64(-1)
	if v, ok := dict.Get(raw.NameLiteral("Length")); ok {
		switch l := v.(type) {
		case raw.NumberObj:
			length = l.Int()
		case raw.RefObj:
			if resolve != nil {
				if n, ok := resolve(l.R); ok {
					length = n
				}
			}
		}
	}
	s.SetNextStreamLength(length)
	tok, err := tr.next()
	if err != nil {
		s.SetNextStreamLength(-1)
		return dict, nil
	}
	if tok.Type == scanner.TokenStream {
		payload, _ := tok.Value.([]byte)
		return raw.NewStream(dict, payload), nil
	}
	s.SetNextStreamLength(-1)
	tr.unread(tok)
	return dict, nil
}

func parseValue(tr *tokenSource) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameObj{Val: tok.Value.(string)}, nil
	case scanner.TokenNumber:
		switch v := tok.Value.(type) {
		case int64:
			return raw.NumberObj{I: v, IsInt: true}, nil
		case float64:
			return raw.NumberObj{F: v}, nil
		}
		return nil, errors.New("malformed number token")
	case scanner.TokenBoolean:
		return raw.BoolObj{V: tok.Value.(bool)}, nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenString:
		sv := tok.Value.(scanner.StringVal)
		return raw.StringObj{Bytes: sv.Bytes, Hex: sv.Hex}, nil
	case scanner.TokenRef:
		r := tok.Value.(scanner.Ref)
		return raw.RefObj{R: raw.ObjectRef{Num: r.Num, Gen: r.Gen}}, nil
	case scanner.TokenArray:
		return parseArray(tr)
	case scanner.TokenDict:
		return parseDict(tr)
	}
	return nil, fmt.Errorf("unexpected token %v at %d", tok.Type, tok.Pos)
}

func parseArray(tr *tokenSource) (raw.Object, error) {
	arr := raw.NewArray()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if isKeyword(tok, "]") {
			return arr, nil
		}
		tr.unread(tok)
		item, err := parseValue(tr)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func parseDict(tr *tokenSource) (raw.Object, error) {
	d := raw.Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if isKeyword(tok, ">>") {
			return d, nil
		}
		// Tolerate a missing >> when the object ends. The unread keyword
		// lets parseBody finish cleanly.
		if isKeyword(tok, "endobj") {
			tr.unread(tok)
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected name key in dictionary at %d", tok.Pos)
		}
		key := tok.Value.(string)
		val, err := parseValue(tr)
		if err != nil {
			return nil, err
		}
		d.Set(raw.NameObj{Val: key}, val)
	}
}

func expectInt(tr *tokenSource) (int64, error) {
	tok, err := tr.next()
	if err != nil {
		return 0, err
	}
	n, ok := intToken(tok)
	if !ok {
		return 0, fmt.Errorf("expected integer at %d", tok.Pos)
	}
	return n, nil
}

func intToken(tok scanner.Token) (int64, bool) {
	if tok.Type != scanner.TokenNumber {
		return 0, false
	}
	n, ok := tok.Value.(int64)
	return n, ok
}

func isKeyword(tok scanner.Token, kw string) bool {
	return tok.Type == scanner.TokenKeyword && tok.Value == kw
}
