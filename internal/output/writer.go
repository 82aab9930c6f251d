package output

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"mongotable/internal/common"
)

const (
	None = "none"
	GZIP = "gzip"
	ZSTD = "zstd"
	LZ4  = "lz4"

	bufferSize = 256 * 1024
)

// Config holds configuration for output file creation.
type Config struct {
	Path        string
	Compression string
	// Stdout receives the table when Path is empty. Defaults to os.Stdout.
	Stdout io.Writer
}

// Compressions lists the supported compression names.
func Compressions() []string {
	return []string{None, GZIP, ZSTD, LZ4}
}

// CreateWriter opens the destination described by cfg. The returned path is the file
// actually written, including any compression suffix, or "-" for stdout.
func CreateWriter(cfg Config) (io.WriteCloser, string, error) {
	compression := strings.ToLower(strings.TrimSpace(cfg.Compression))
	if compression == "" {
		compression = None
	}

	if cfg.Path == "" || cfg.Path == "-" {
		if compression != None {
			return nil, "", &common.ConfigError{Op: "create writer", Reason: "compressed output requires a file path"}
		}
		out := cfg.Stdout
		if out == nil {
			out = os.Stdout
		}
		return &compositeWriteCloser{Writer: out}, "-", nil
	}

	switch compression {
	case None:
		return newFileWriter(cfg.Path)
	case GZIP:
		return newCompressedWriter(cfg.Path, ".gz", func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		})
	case ZSTD:
		return newCompressedWriter(cfg.Path, ".zst", func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		})
	case LZ4:
		return newCompressedWriter(cfg.Path, ".lz4", func(w io.Writer) (io.WriteCloser, error) {
			return lz4.NewWriter(w), nil
		})
	default:
		return nil, "", &common.ConfigError{
			Op:     "create writer",
			Reason: fmt.Sprintf("unsupported compression type %q (available: %s)", cfg.Compression, strings.Join(Compressions(), ", ")),
		}
	}
}

func newFileWriter(path string) (io.WriteCloser, string, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, "", &common.FileIOError{Op: "create file", Reason: err.Error(), Err: err}
	}
	buffered := bufio.NewWriterSize(file, bufferSize)
	return &compositeWriteCloser{
		Writer: buffered,
		closeFunc: func() error {
			if err := buffered.Flush(); err != nil {
				file.Close() // Attempt to close even if flush fails.
				return &common.FileIOError{Op: "flush", Reason: err.Error(), Err: err}
			}
			return file.Close()
		},
	}, path, nil
}

func newCompressedWriter(path, suffix string, wrap func(io.Writer) (io.WriteCloser, error)) (io.WriteCloser, string, error) {
	if !strings.HasSuffix(strings.ToLower(path), suffix) {
		path += suffix
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, "", &common.FileIOError{Op: "create file", Reason: err.Error(), Err: err}
	}
	compressor, err := wrap(file)
	if err != nil {
		file.Close()
		return nil, "", &common.FileIOError{Op: "create compressor", Reason: err.Error(), Err: err}
	}
	return &compositeWriteCloser{
		Writer: compressor,
		closeFunc: func() error {
			var err error
			if cerr := compressor.Close(); cerr != nil {
				err = cerr
			}
			if ferr := file.Close(); ferr != nil && err == nil {
				err = ferr
			}
			return err
		},
	}, path, nil
}

type compositeWriteCloser struct {
	io.Writer
	closeFunc func() error
}

// Close implements io.WriteCloser.
func (c *compositeWriteCloser) Close() error {
	if c.closeFunc == nil {
		return nil
	}
	return c.closeFunc()
}
