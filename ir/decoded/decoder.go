package decoded

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/ygzhang/sealkit/filters"
	"github.com/ygzhang/sealkit/ir/raw"
)

// Image codecs the filter pipeline does not implement. Streams carrying
// them keep their encoded payload and report the codec as residual.
var passthrough = map[string]bool{
	"DCTDecode":      true,
	"JPXDecode":      true,
	"JBIG2Decode":    true,
	"CCITTFaxDecode": true,
}

// NewDecoder constructs a Decoder that applies filter decoding to streams.
func NewDecoder(p *filters.Pipeline) Decoder {
	return &decoder{pipeline: p}
}

type decoder struct {
	pipeline *filters.Pipeline
}

func (d *decoder) Decode(ctx context.Context, rawDoc *raw.Document) (*Document, error) {
	streams := make(map[raw.ObjectRef]Stream)

	type task struct {
		ref raw.ObjectRef
		obj raw.Stream
	}
	var tasks []task
	for ref, obj := range rawDoc.Objects {
		if s, ok := obj.(raw.Stream); ok {
			tasks = append(tasks, task{ref: ref, obj: s})
		}
	}
	if len(tasks) == 0 {
		return &Document{Raw: rawDoc, Streams: streams}, nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	type result struct {
		ref    raw.ObjectRef
		stream Stream
		err    error
	}
	results := make(chan result, len(tasks))

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- result{err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			select {
			case <-ctx.Done():
				results <- result{err: ctx.Err()}
				return
			default:
			}

			data := t.obj.RawData()
			names, params := filters.ExtractFilters(t.obj.Dictionary())
			cut := passthroughIndex(names)

			if d.pipeline != nil && cut > 0 {
				decodedData, err := d.pipeline.Decode(ctx, data, names[:cut], params)
				if err != nil {
					results <- result{err: fmt.Errorf("decode filters %v for %v: %w", names[:cut], t.ref, err)}
					return
				}
				data = decodedData
			}

			results <- result{
				ref: t.ref,
				stream: decodedStream{
					src:      t.obj,
					data:     data,
					residual: names[cut:],
				},
			}
		}(t)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		streams[res.ref] = res.stream
	}

	return &Document{Raw: rawDoc, Streams: streams}, nil
}

// passthroughIndex returns the index of the first filter the pipeline must
// not decode, or len(names) when the whole chain is decodable.
func passthroughIndex(names []string) int {
	for i, n := range names {
		if passthrough[n] {
			return i
		}
	}
	return len(names)
}

type decodedStream struct {
	src      raw.Stream
	data     []byte
	residual []string
}

func (s decodedStream) Raw() raw.Stream            { return s.src }
func (s decodedStream) Dictionary() raw.Dictionary { return s.src.Dictionary() }
func (s decodedStream) Data() []byte               { return s.data }
func (s decodedStream) Filters() []string          { return s.residual }
