package transactions

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const utf8BOM = "\ufeff"

// ErrMissingHeader is returned for an input without even a header row.
var ErrMissingHeader = errors.New("transactions: csv has no header row")

// Loader parses statements and stages uploads in its own directory.
type Loader struct {
	dir string
}

// NewLoader creates the upload directory if it does not exist yet.
func NewLoader(dir string) (*Loader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transactions: create upload dir %q: %w", dir, err)
	}
	return &Loader{dir: dir}, nil
}

func (l *Loader) Dir() string { return l.dir }

// Parse reads CSV rows keyed by the header row. Short rows are padded with
// empty values and extra trailing fields are dropped. A header without rows
// yields no transactions and no error.
func Parse(r io.Reader) ([]Transaction, error) {
	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("transactions: read header: %w", err)
	}

	var txns []Transaction
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("transactions: read row %d: %w", len(txns)+1, err)
		}

		var t Transaction
		for i, key := range header {
			value := ""
			if i < len(record) {
				value = record[i]
			}
			t.Set(key, value)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && string(prefix) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// Load parses the CSV file at path.
func (l *Loader) Load(path string) ([]Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transactions: open %s: %w", path, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	return Parse(f)
}

// Ingest stores src under a unique name in the upload directory, parses it
// and removes the file before returning, whatever the outcome.
func (l *Loader) Ingest(src io.Reader, ext string) ([]Transaction, error) {
	ext = strings.ToLower(strings.TrimLeft(ext, "."))
	path := filepath.Join(l.dir, uuid.New().String()+"."+ext)

	if err := save(path, src); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Could not remove uploaded file")
		}
	}()

	txns, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Int("transactions", len(txns)).Msg("Parsed uploaded statement")
	return txns, nil
}

// save writes and closes the file so it can be read back and deleted safely.
func save(path string, src io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("transactions: create %s: %w", path, err)
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return fmt.Errorf("transactions: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("transactions: close %s: %w", path, err)
	}
	return nil
}
