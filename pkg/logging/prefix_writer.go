package logging

import (
	"bytes"
	"io"
)

// PrefixWriter wraps an io.Writer and adds a prefix to each line. Incomplete
// lines are buffered until their newline arrives, so interleaved writers on
// the same terminal never split a prefixed line.
type PrefixWriter struct {
	prefix  []byte
	writer  io.Writer
	pending bytes.Buffer
}

// NewPrefixWriter creates a new PrefixWriter.
func NewPrefixWriter(prefix string, w io.Writer) *PrefixWriter {
	return &PrefixWriter{
		prefix: []byte(prefix),
		writer: w,
	}
}

// Write implements the io.Writer interface.
func (pw *PrefixWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		nl := bytes.IndexByte(p, '\n')
		if nl < 0 {
			// No newline yet, hold the fragment until one shows up.
			pw.pending.Write(p)
			break
		}
		if _, err := pw.writer.Write(pw.prefix); err != nil {
			return 0, err
		}
		if pw.pending.Len() > 0 {
			if _, err := pw.writer.Write(pw.pending.Bytes()); err != nil {
				return 0, err
			}
			pw.pending.Reset()
		}
		if _, err := pw.writer.Write(p[:nl+1]); err != nil {
			return 0, err
		}
		p = p[nl+1:]
	}
	return total, nil
}
