package filters

import (
	"errors"
	"fmt"

	"github.com/ygzhang/sealkit/ir/raw"
)

// applyPredictor reverses the row predictor named in a DecodeParms
// dictionary. Predictor 1 (or absent params) passes data through, 2 is the
// componentwise TIFF predictor, 10 and up are the PNG row filters used by
// cross-reference streams.
func applyPredictor(data []byte, params raw.Dictionary) ([]byte, error) {
	pred := dictInt(params, "Predictor", 1)
	if pred <= 1 {
		return data, nil
	}
	colors := dictInt(params, "Colors", 1)
	bpc := dictInt(params, "BitsPerComponent", 8)
	columns := dictInt(params, "Columns", 1)
	if colors < 1 || columns < 1 {
		return nil, fmt.Errorf("predictor: bad geometry colors=%d columns=%d", colors, columns)
	}

	switch {
	case pred == 2:
		return applyTIFFPredictor(data, colors, bpc, columns)
	case pred >= 10 && pred <= 15:
		return applyPNGPredictor(data, colors, bpc, columns)
	default:
		return nil, fmt.Errorf("predictor: unsupported value %d", pred)
	}
}

func applyTIFFPredictor(data []byte, colors, bpc, columns int) ([]byte, error) {
	if bpc != 8 {
		return nil, fmt.Errorf("predictor: tiff with %d bits per component", bpc)
	}
	rowLen := colors * columns
	if rowLen == 0 || len(data)%rowLen != 0 {
		return nil, errors.New("predictor: data does not divide into rows")
	}
	out := make([]byte, len(data))
	copy(out, data)
	for row := 0; row < len(out); row += rowLen {
		for i := colors; i < rowLen; i++ {
			out[row+i] += out[row+i-colors]
		}
	}
	return out, nil
}

func applyPNGPredictor(data []byte, colors, bpc, columns int) ([]byte, error) {
	rowLen := (colors*bpc*columns + 7) / 8
	bpp := (colors*bpc + 7) / 8
	stride := rowLen + 1
	if rowLen == 0 || len(data)%stride != 0 {
		return nil, errors.New("predictor: data does not divide into png rows")
	}

	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		ft := data[r*stride]
		copy(cur, data[r*stride+1:(r+1)*stride])
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				cur[i] += cur[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				cur[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = cur[i-bpp]
				}
				cur[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = cur[i-bpp]
					upLeft = prev[i-bpp]
				}
				cur[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("predictor: unknown png row filter %d", ft)
		}
		out = append(out, cur...)
		prev, cur = cur, prev
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func dictInt(d raw.Dictionary, key string, def int) int {
	if d == nil {
		return def
	}
	obj, ok := d.Get(raw.NameObj{Val: key})
	if !ok {
		return def
	}
	if n, ok := obj.(raw.Number); ok {
		return int(n.Int())
	}
	return def
}
