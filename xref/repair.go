package xref

import (
	"context"
	"errors"
	"io"

	"github.com/ygzhang/sealkit/ir/raw"
	"github.com/ygzhang/sealkit/scanner"
)

// Repair reconstructs cross-reference information by scanning the whole file
// for "num gen obj" patterns, for files whose xref chain is missing or
// broken. The last trailer dictionary found wins; a minimal one is built
// when none survives.
func Repair(ctx context.Context, data []byte, parse ParseFunc) (Table, raw.Dictionary, error) {
	s := scanner.New(data, scanner.DefaultConfig())
	entries := make(map[int]entry)
	var lastTrailer *raw.DictObj

	for {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		before := s.Position()
		tok, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Malformed region: step over it and keep scanning.
			if s.Position() <= before {
				if s.Seek(before+1) != nil {
					break
				}
			}
			continue
		}

		switch {
		case tok.Type == scanner.TokenNumber:
			num, ok := tok.Value.(int64)
			if !ok {
				continue
			}
			genTok, err := s.Next()
			if err != nil {
				continue
			}
			gen, ok := genTok.Value.(int64)
			if genTok.Type != scanner.TokenNumber || !ok {
				continue
			}
			kwTok, err := s.Next()
			if err != nil {
				continue
			}
			if kwTok.Type == scanner.TokenKeyword && kwTok.Value == "obj" {
				entries[int(num)] = entry{typ: 1, offset: tok.Pos, gen: int(gen)}
				continue
			}
			// genTok may itself start an object header; rescan from it.
			if err := s.Seek(genTok.Pos); err != nil {
				return nil, nil, err
			}

		case tok.Type == scanner.TokenKeyword && tok.Value == "trailer":
			pos := skipWS(data, s.Position())
			if obj, err := parse(data, pos); err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					lastTrailer = dict
				}
			}
		}
	}

	if len(entries) == 0 {
		return nil, nil, errors.New("repair failed: no objects found")
	}
	if lastTrailer == nil {
		lastTrailer = raw.Dict()
		lastTrailer.Set(raw.NameObj{Val: "Size"}, raw.NumberInt(int64(len(entries)+1)))
	}
	return &table{entries: entries, typ: "repair"}, lastTrailer, nil
}
