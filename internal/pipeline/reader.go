// Package pipeline runs the batch document-processing pass: it streams
// raw crawl files through a worker pool of processors and writes
// index-ready part files.
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/logger"
)

// maxLineBytes bounds one JSONL record; crawled pages can be large.
const maxLineBytes = 16 * 1024 * 1024

// parseWarnEvery throttles malformed-record warnings: the first one is
// logged, then every Nth after.
const parseWarnEvery = 100

// StreamRecords reads raw records from a crawl file, calling fn for each.
// Both formats the crawler emits are handled: a single JSON array, or one
// JSON object per line. A record that does not decode is skipped with a
// throttled warning; only unreadable files fail. The file is never loaded
// whole; a multi-gigabyte batch streams in constant memory.
func StreamRecords(path string, log logger.Logger, fn func(domain.RawRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReaderSize(f, 1<<20)
	first, err := peekFirstByte(br)
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	warns := &parseWarnings{log: log, path: path}
	if first == '[' {
		return streamArray(br, path, warns, fn)
	}
	return streamLines(br, warns, fn)
}

// parseWarnings counts skipped records per file and logs a throttled
// subset of them.
type parseWarnings struct {
	log   logger.Logger
	path  string
	count int
}

func (p *parseWarnings) skip(position int, err error) {
	p.count++
	if p.count == 1 || p.count%parseWarnEvery == 0 {
		p.log.Warn("Skipping malformed record",
			logger.String("file", p.path),
			logger.Int("record", position),
			logger.Int("skipped_so_far", p.count),
			logger.Error(err),
		)
	}
}

// peekFirstByte finds the first non-whitespace byte without consuming it.
func peekFirstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := br.ReadByte(); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}

// streamArray decodes a JSON array element by element via the token API.
// Each element lands in a RawMessage first so a record that fails to bind
// can be skipped without losing the decoder's position; a syntax error in
// the array itself is unrecoverable and fails the file.
func streamArray(r io.Reader, path string, warns *parseWarnings, fn func(domain.RawRecord) error) error {
	dec := json.NewDecoder(r)

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read array start in %s: %w", path, err)
	}
	index := 0
	for dec.More() {
		index++
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode record %d in %s: %w", index, path, err)
		}
		var rec domain.RawRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			warns.skip(index, err)
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read array end in %s: %w", path, err)
	}
	return nil
}

// streamLines decodes one JSON object per line, skipping blank and
// malformed lines.
func streamLines(r io.Reader, warns *parseWarnings, fn func(domain.RawRecord) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec domain.RawRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			warns.skip(lineNo, err)
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", warns.path, err)
	}
	return nil
}
