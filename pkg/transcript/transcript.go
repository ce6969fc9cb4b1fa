// Package transcript writes a compressed record of every external command a
// bootstrap run executes, together with its combined output and exit status.
// The console log only carries the output of a failing command; the transcript
// keeps all of it, which is what is needed to debug a slow or noisy install.
package transcript

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/paulschiretz/venv-bootstrap/pkg/buildinfo"
	"github.com/paulschiretz/venv-bootstrap/pkg/hints"
	"github.com/paulschiretz/venv-bootstrap/pkg/plog"
	"github.com/paulschiretz/venv-bootstrap/pkg/util"
)

// ErrDisabled is returned by Create when the format is None.
var ErrDisabled = hints.New("transcript is disabled")

const timestampFormat = "20060102T150405Z"

// Writer appends command records to a compressed transcript file. The file is
// written under a temporary name and only renamed into place by Close, so a
// transcript that exists on disk is always complete.
type Writer struct {
	mu         sync.Mutex
	path       string
	tmpPath    string
	file       *os.File
	buf        *bufio.Writer
	compressed io.WriteCloser
	closed     bool
}

// Create opens a new transcript in dir named after the application and the
// given timestamp. The directory is created if needed.
func Create(dir string, format Format, timestampUTC time.Time) (*Writer, error) {
	if format == None {
		return nil, ErrDisabled
	}
	if err := os.MkdirAll(dir, util.UserWritableDirPerms); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s-%s%s", buildinfo.Name, timestampUTC.UTC().Format(timestampFormat), format.Extension())
	path := filepath.Join(dir, name)

	f, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file in %s: %w", dir, err)
	}

	buf := bufio.NewWriter(f)
	var compressed io.WriteCloser
	switch format {
	case Zst:
		compressed, err = zstd.NewWriter(buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case Gz:
		compressed, err = pgzip.NewWriterLevel(buf, pgzip.DefaultCompression)
	default:
		err = fmt.Errorf("unsupported transcript format %s", format)
	}
	if err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("failed to create %s writer: %w", format, err)
	}

	return &Writer{
		path:       path,
		tmpPath:    f.Name(),
		file:       f,
		buf:        buf,
		compressed: compressed,
	}, nil
}

// Path is the final location of the transcript once it has been closed.
func (w *Writer) Path() string {
	return w.path
}

// Record appends one command, the directory it ran in, its exit status and
// its combined output.
func (w *Writer) Record(args []string, dir string, exitCode int, output []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("transcript %s is already closed", w.path)
	}

	header := "$ " + util.QuoteArgs(args) + "\n"
	if dir != "" {
		header = "$ cd " + util.QuoteArgs([]string{dir}) + " && " + util.QuoteArgs(args) + "\n"
	}
	if _, err := io.WriteString(w.compressed, header); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if _, err := w.compressed.Write(output); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if len(output) > 0 && output[len(output)-1] != '\n' {
		if _, err := io.WriteString(w.compressed, "\n"); err != nil {
			return fmt.Errorf("failed to write transcript: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w.compressed, "[exit status %d]\n\n", exitCode); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// Close flushes the compressor and moves the transcript to its final path.
// Calling Close more than once is a no-op.
func (w *Writer) Close() (retErr error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	defer func() {
		if retErr != nil {
			if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
				plog.Warn("Failed to remove temporary transcript", "path", w.tmpPath, "error", err)
			}
		}
	}()

	if err := w.compressed.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("compressed writer close failed: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("buffer flush failed: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to sync transcript: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close transcript: %w", err)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		return fmt.Errorf("failed to move transcript into place: %w", err)
	}
	return nil
}
