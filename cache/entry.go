package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// flagCompressed marks a zlib-compressed payload. The bit position
// matches the historical memcached client convention.
const flagCompressed uint32 = 1 << 3

// envelope is the stored form of an entry. The qualified key travels
// with the value so a physical key collision is detectable on read.
type envelope struct {
	Key   string          `json:"k"`
	Value json.RawMessage `json:"v"`
}

// Result is the outcome of a Get. The zero value is a miss. A hit
// whose value is JSON null is still a hit.
type Result struct {
	hit bool
	raw json.RawMessage
}

// Hit reports whether a value was found.
func (r Result) Hit() bool { return r.hit }

// Raw returns the raw JSON value, or nil on a miss.
func (r Result) Raw() json.RawMessage {
	if !r.hit {
		return nil
	}
	return r.raw
}

// Decode unmarshals the value into out. Returns ErrNoValue on a miss.
func (r Result) Decode(out any) error {
	if !r.hit {
		return ErrNoValue
	}
	if err := json.Unmarshal(r.raw, out); err != nil {
		return fmt.Errorf("cache: decode value: %w", err)
	}
	return nil
}

func hitResult(raw json.RawMessage) Result {
	return Result{hit: true, raw: raw}
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
