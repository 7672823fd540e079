package transport

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"ejrpc/internal/errs"
)

// A frame is an 8 byte big endian length, then one byte naming the
// compressor, then the payload. The length counts the code byte.
const (
	lenBytes = 8

	DefaultMaxFrameSize = 16 << 20
)

// ReadFrame reads one frame from r. Frames longer than limit are rejected
// before their payload is read.
func ReadFrame(r io.Reader, limit uint64) (code byte, payload []byte, err error) {
	lenBs := make([]byte, lenBytes)
	if _, err = io.ReadFull(r, lenBs); err != nil {
		return 0, nil, err
	}
	dataLen := binary.BigEndian.Uint64(lenBs)
	if dataLen == 0 {
		return 0, nil, errs.ReadLenDataError
	}
	if limit > 0 && dataLen > limit {
		return 0, nil, errs.FrameTooLarge(dataLen, limit)
	}
	bs := make([]byte, dataLen)
	if _, err = io.ReadFull(r, bs); err != nil {
		return 0, nil, errors.Wrap(err, "ejrpc: truncated frame")
	}
	return bs[0], bs[1:], nil
}

// EncodeFrame lays out payload behind its length and compressor code.
func EncodeFrame(code byte, payload []byte) []byte {
	encode := make([]byte, lenBytes+1+len(payload))
	binary.BigEndian.PutUint64(encode[:lenBytes], uint64(len(payload)+1))
	encode[lenBytes] = code
	copy(encode[lenBytes+1:], payload)
	return encode
}
