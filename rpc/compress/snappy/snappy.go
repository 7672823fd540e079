package snappy

import (
	"bytes"
	"io"

	"github.com/golang/snappy"

	"ejrpc/rpc/compress"
)

var _ compress.Compressor = Compressor{}

// Compressor implements the Compressor interface with the snappy framing
// format.
type Compressor struct{}

func (Compressor) Code() byte {
	return 3
}

// Compress data
func (Compressor) Compress(data []byte) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	w := snappy.NewBufferedWriter(buf)
	_, err := w.Write(data)
	if err != nil {
		return nil, err
	}
	// Close flushes the buffered block, so it must run before buf is read.
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Uncompress data
func (Compressor) Uncompress(data []byte) ([]byte, error) {
	r := snappy.NewReader(bytes.NewReader(data))
	res, err := io.ReadAll(r)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return res, nil
}
