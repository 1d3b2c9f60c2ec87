// Package decoded sits between the raw object layer and the semantic page
// model. Every stream in the document gets its filter chain applied once so
// later stages work with plain bytes.
package decoded

import (
	"context"

	"github.com/ygzhang/sealkit/ir/raw"
)

// Stream is a raw stream with its filter chain applied.
type Stream interface {
	Raw() raw.Stream
	Dictionary() raw.Dictionary
	Data() []byte
	// Filters names the codecs still applied to Data. Image codecs such as
	// DCTDecode are passed through undecoded; an empty slice means the
	// payload is fully decoded.
	Filters() []string
}

// Document pairs the raw document with its decoded streams. Non-stream
// objects need no decoding and are reached through Raw.
type Document struct {
	Raw     *raw.Document
	Streams map[raw.ObjectRef]Stream
}

// Decoder transforms the raw IR into decoded IR.
type Decoder interface {
	Decode(ctx context.Context, rawDoc *raw.Document) (*Document, error)
}
