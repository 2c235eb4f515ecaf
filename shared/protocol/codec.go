// Package protocol encodes Logical State snapshots for the wire: msgpack with
// sorted map keys, optional lz4 compression, and a blake3 digest so two peers
// can compare snapshots byte for byte.
package protocol

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/automoto/warband-mp/shared/messages"
	"github.com/automoto/warband-mp/shared/state"
	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"
)

// ErrDigestMismatch is returned when a payload does not hash to its digest.
var ErrDigestMismatch = errors.New("protocol: snapshot digest mismatch")

var bufferPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

func newHandle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.Canonical = true
	return h
}

var handle = newHandle()

// Marshal encodes s as canonical msgpack.
func Marshal(s *state.State) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, handle).Encode(s); err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return out, nil
}

// Unmarshal decodes msgpack produced by Marshal.
func Unmarshal(data []byte) (*state.State, error) {
	s := &state.State{}
	if err := codec.NewDecoderBytes(data, handle).Decode(s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	s.Normalize()
	return s, nil
}

// Digest returns the hex blake3 hash of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EncodeState builds the StateMessage for s.
func EncodeState(s *state.State, compress bool) (messages.StateMessage, error) {
	raw, err := Marshal(s)
	if err != nil {
		return messages.StateMessage{}, err
	}
	msg := messages.StateMessage{
		Tick:    s.Tick,
		Payload: raw,
		Digest:  Digest(raw),
	}
	if compress {
		packed, err := Compress(raw)
		if err != nil {
			return messages.StateMessage{}, err
		}
		msg.Payload = packed
		msg.Compressed = true
	}
	return msg, nil
}

// DecodeState reverses EncodeState and verifies the digest.
func DecodeState(msg messages.StateMessage) (*state.State, error) {
	raw := msg.Payload
	if msg.Compressed {
		var err error
		raw, err = Decompress(msg.Payload)
		if err != nil {
			return nil, err
		}
	}
	if msg.Digest != "" && Digest(raw) != msg.Digest {
		return nil, ErrDigestMismatch
	}
	return Unmarshal(raw)
}

// Compress lz4-frames src.
func Compress(src []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer bufferPool.Put(buf)
	buf.Reset()

	w := lz4.NewWriter(buf)
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}

	// Return strictly sized slice
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Decompress reverses Compress.
func Decompress(src []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("lz4 read: %w", err)
	}
	return out, nil
}
