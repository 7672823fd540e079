package compress

// Compressor compresses frame payloads. Code is written on the wire so the
// peer can pick the matching implementation.
type Compressor interface {
	Code() byte
	Compress(data []byte) ([]byte, error)
	Uncompress(data []byte) ([]byte, error)
}

var _ Compressor = DoNothingCompressor{}

// DoNothingCompressor is the default; it avoids nil checks.
type DoNothingCompressor struct{}

func (DoNothingCompressor) Code() byte {
	return 0
}

func (DoNothingCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (DoNothingCompressor) Uncompress(data []byte) ([]byte, error) {
	return data, nil
}
