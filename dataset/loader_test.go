package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

const sampleCSV = `price,rooms,district,area
100.5,3,A,50
200,4,B,80
150.25,3,A,65
`

func TestReadCSV(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(sampleCSV), "sample.csv", LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, ds.NumRows())
	assert.Equal(t, Schema{
		{"price", Numeric}, {"rooms", Numeric}, {"district", Categorical}, {"area", Numeric},
	}, ds.Schema())

	price, _ := ds.Column("price")
	assert.Equal(t, []float64{100.5, 200, 150.25}, price.Numbers)
}

func TestReadCSV_Options(t *testing.T) {
	input := "# comment\na;b\n1;x\n2;y\n"
	ds, err := ReadCSV(strings.NewReader(input), "semi.csv", LoadOptions{Delimiter: ';', Comment: '#'})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ds.Names())

	ds, err = ReadCSV(strings.NewReader(sampleCSV), "sample.csv", LoadOptions{Categorical: []string{"rooms"}})
	require.NoError(t, err)
	rooms, _ := ds.Column("rooms")
	assert.Equal(t, Categorical, rooms.Kind)
	assert.Equal(t, []string{"3", "4", "3"}, rooms.Strings)

	_, err = ReadCSV(strings.NewReader(sampleCSV), "sample.csv", LoadOptions{Categorical: []string{"nope"}})
	assert.True(t, errors.IsUnknownColumn(err))
}

func TestReadCSV_DataIntegrity(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantRow    int
		wantColumn string
	}{
		{name: "empty input", input: "", wantRow: 1},
		{name: "header only", input: "a,b\n", wantRow: 1},
		{name: "duplicate header", input: "a,a\n1,2\n", wantRow: 1, wantColumn: "a"},
		{name: "empty header name", input: "a,\n1,2\n", wantRow: 1, wantColumn: "2"},
		{name: "ragged row", input: "a,b\n1,2\n3\n", wantRow: 3},
		{name: "missing numeric cell", input: "a,b\n1,2\n,4\n", wantRow: 3, wantColumn: "a"},
		{name: "NA cell", input: "a,b\n1,NA\n3,4\n", wantRow: 2, wantColumn: "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), "bad.csv", LoadOptions{})
			require.Error(t, err)
			require.True(t, errors.IsDataIntegrity(err), "got %v", err)

			var de *errors.DataIntegrityError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, "bad.csv", de.Source)
			assert.Equal(t, tt.wantRow, de.Row)
			assert.Equal(t, tt.wantColumn, de.Column)
		})
	}
}

func TestLoadCSV_Compressed(t *testing.T) {
	dir := t.TempDir()

	encoders := map[string]func(*bytes.Buffer) error{
		"data.csv": func(b *bytes.Buffer) error {
			_, err := b.WriteString(sampleCSV)
			return err
		},
		"data.csv.gz": func(b *bytes.Buffer) error {
			w := gzip.NewWriter(b)
			if _, err := w.Write([]byte(sampleCSV)); err != nil {
				return err
			}
			return w.Close()
		},
		"data.csv.zst": func(b *bytes.Buffer) error {
			w, err := zstd.NewWriter(b)
			if err != nil {
				return err
			}
			if _, err := w.Write([]byte(sampleCSV)); err != nil {
				return err
			}
			return w.Close()
		},
		"data.csv.lz4": func(b *bytes.Buffer) error {
			w := lz4.NewWriter(b)
			if _, err := w.Write([]byte(sampleCSV)); err != nil {
				return err
			}
			return w.Close()
		},
		"data.csv.xz": func(b *bytes.Buffer) error {
			w, err := xz.NewWriter(b)
			if err != nil {
				return err
			}
			if _, err := w.Write([]byte(sampleCSV)); err != nil {
				return err
			}
			return w.Close()
		},
	}

	var want uint64
	for name, encode := range encoders {
		var buf bytes.Buffer
		require.NoError(t, encode(&buf), name)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

		ds, err := LoadCSV(path, LoadOptions{})
		require.NoError(t, err, name)
		assert.Equal(t, 3, ds.NumRows(), name)
		if want == 0 {
			want = ds.Fingerprint()
		}
		assert.Equal(t, want, ds.Fingerprint(), "%s decoded differently", name)
	}
}

func TestLoadCSV_GzipDecodedOnce(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte("x,y\n1,2\n3,4\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	dir := t.TempDir()
	tests := []struct {
		name string
		file string
		opts LoadOptions
	}{
		{"detected from extension", "d.csv.gz", LoadOptions{}},
		{"explicit codec", "d.bin", LoadOptions{Compression: CompressionGzip}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
			ds, err := LoadCSV(path, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, 2, ds.NumRows())
			assert.Equal(t, []string{"x", "y"}, ds.Names())
		})
	}

	// ReadCSV は自身でストリームを展開する
	ds, err := ReadCSV(bytes.NewReader(buf.Bytes()), "stream", LoadOptions{Compression: CompressionGzip})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumRows())
}

func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "absent.csv"), LoadOptions{})
	assert.True(t, errors.IsDataIntegrity(err))
}

func TestDetectCompression(t *testing.T) {
	assert.Equal(t, CompressionGzip, DetectCompression("a.csv.GZ"))
	assert.Equal(t, CompressionZstd, DetectCompression("a.zst"))
	assert.Equal(t, CompressionLZ4, DetectCompression("a.lz4"))
	assert.Equal(t, CompressionXZ, DetectCompression("a.xz"))
	assert.Equal(t, CompressionNone, DetectCompression("a.csv"))
}
