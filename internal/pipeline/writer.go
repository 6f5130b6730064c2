package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonesrussell/north-search/internal/domain"
)

// PartWriter writes index-ready items as JSONL part files, rotating after
// maxItems lines. Every line carries a "type" field so the indexer can
// route it without knowing the payload shape.
type PartWriter struct {
	dir      string
	batch    string
	maxItems int

	part    int
	count   int
	written []string
	file    *os.File
	buf     *bufio.Writer
}

// NewPartWriter creates a writer for one source batch. Files land in dir
// as {batch}_part_NNN.jsonl.
func NewPartWriter(dir, batch string, maxItems int) *PartWriter {
	return &PartWriter{dir: dir, batch: batch, maxItems: maxItems}
}

// WriteDocument appends one document line.
func (w *PartWriter) WriteDocument(doc *domain.Document) error {
	return w.write(domain.LineTypeDocument, doc)
}

// WriteChunk appends one chunk line.
func (w *PartWriter) WriteChunk(chunk *domain.DocumentChunk) error {
	return w.write(domain.LineTypeChunk, chunk)
}

func (w *PartWriter) write(lineType string, item any) error {
	if w.file == nil || w.count >= w.maxItems {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	line, err := encodeLine(lineType, item)
	if err != nil {
		return err
	}
	if _, err := w.buf.Write(line); err != nil {
		return fmt.Errorf("write part file: %w", err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("write part file: %w", err)
	}
	w.count++
	return nil
}

// encodeLine injects the type discriminator into the item's JSON object.
func encodeLine(lineType string, item any) ([]byte, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshal %s line: %w", lineType, err)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("reshape %s line: %w", lineType, err)
	}
	obj["type"] = lineType
	return json.Marshal(obj)
}

func (w *PartWriter) rotate() error {
	if err := w.closeCurrent(); err != nil {
		return err
	}

	w.part++
	name := fmt.Sprintf("%s_part_%03d.jsonl", w.batch, w.part)
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create part file %s: %w", path, err)
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.count = 0
	w.written = append(w.written, path)
	return nil
}

func (w *PartWriter) closeCurrent() error {
	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("flush part file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close part file: %w", err)
	}
	w.file = nil
	w.buf = nil
	return nil
}

// Close flushes and closes the current part file.
func (w *PartWriter) Close() error {
	return w.closeCurrent()
}

// Files lists the part files written so far.
func (w *PartWriter) Files() []string {
	return w.written
}
