package util

import (
	"bytes"
	"cmp"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
	"github.com/samber/lo"
)

var (
	ErrInvalidUTF8 = errors.New("inflated payload is not valid UTF-8")
	ErrTooLarge    = errors.New("inflated payload exceeds size limit")
)

// maximum size of an inflated payload
const maxInflated = 16 << 20

// Inflate decodes a base64 encoded compressed payload to text.
// Data with a zlib header is read as zlib stream, everything else as raw deflate.
func Inflate(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	var r io.ReadCloser
	if hasZlibHeader(data) {
		if r, err = zlib.NewReader(bytes.NewReader(data)); err != nil {
			return "", fmt.Errorf("open zlib stream: %w", err)
		}
	} else {
		r = flate.NewReader(bytes.NewReader(data))
	}
	defer r.Close()
	text, err := io.ReadAll(io.LimitReader(r, maxInflated+1))
	if err != nil {
		return "", fmt.Errorf("inflate: %w", err)
	}
	if len(text) > maxInflated {
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxInflated)
	}
	if !utf8.Valid(text) {
		return "", ErrInvalidUTF8
	}
	return string(text), nil
}

// Deflate is the reverse of Inflate. It produces a zlib stream when
// withHeader is set, raw deflate data otherwise.
func Deflate(text string, withHeader bool) (string, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	if withHeader {
		w = zlib.NewWriter(&buf)
	} else {
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return "", err
		}
		w = fw
	}
	if _, err := w.Write([]byte(text)); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CMF/FLG check of RFC 1950
func hasZlibHeader(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// SortedKeys returns the keys of a keyed collection in index order.
// Numeric keys come first in numeric order, the rest sorted lexically.
func SortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.SortFunc(keys, CompareIndex)
	return keys
}

// CompareIndex orders numeric strings numerically before any other string.
func CompareIndex(a, b string) int {
	ia, errA := strconv.Atoi(a)
	ib, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(ia, ib)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
