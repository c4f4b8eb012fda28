package dataset

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

// Compression identifies the stream codec of an input file.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
	CompressionXZ   Compression = "xz"
)

// DetectCompression picks the codec from the file extension.
func DetectCompression(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	case ".lz4":
		return CompressionLZ4
	case ".xz":
		return CompressionXZ
	default:
		return CompressionNone
	}
}

// decompress wraps r with a decoder for c. The returned closer releases the
// decoder and not r.
func decompress(r io.Reader, c Compression) (io.Reader, func(), error) {
	noop := func() {}
	switch c {
	case CompressionNone, "":
		return r, noop, nil
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, noop, errors.Wrap(err, "open gzip stream")
		}
		return zr, func() { _ = zr.Close() }, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, noop, errors.Wrap(err, "open zstd stream")
		}
		return zr, zr.Close, nil
	case CompressionLZ4:
		return lz4.NewReader(r), noop, nil
	case CompressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, noop, errors.Wrap(err, "open xz stream")
		}
		return xr, noop, nil
	default:
		return nil, noop, errors.NewValidationError("compression", "unsupported codec", string(c))
	}
}
