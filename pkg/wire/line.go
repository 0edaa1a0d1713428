// Package wire frames the newline-delimited messages used on both the
// serial links and the TCP channels.
package wire

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// MaxLineSize bounds a single message, terminator excluded.
const MaxLineSize = 1024

// Delimiter terminates every message.
const Delimiter = '\n'

var (
	// ErrLineTooLong indicates a message exceeds MaxLineSize.
	ErrLineTooLong = errors.New("line too long")
	// ErrInvalidUTF8 indicates a message is not valid UTF-8 text.
	ErrInvalidUTF8 = errors.New("invalid utf-8")
)

// LineReadWriter implements line based packets over a byte stream.
// Each packet is terminated by Delimiter; a trailing "\r" is dropped.
type LineReadWriter struct {
	r *bufio.Reader
	w io.Writer
}

// New creates a LineReadWriter.
func New(s io.ReadWriter) *LineReadWriter {
	return &LineReadWriter{r: bufio.NewReaderSize(s, MaxLineSize+2), w: s}
}

// ReadLine reads one message without its terminator.
// io.EOF is returned only if the stream ends before any byte of the
// message is read; a partial message at end of stream returns
// io.ErrUnexpectedEOF along with the bytes read.
func (p *LineReadWriter) ReadLine() (string, error) {
	line, err := p.r.ReadSlice(Delimiter)
	switch {
	case err == bufio.ErrBufferFull:
		p.discardLine()
		return "", ErrLineTooLong
	case err == io.EOF && len(line) > 0:
		return string(line), io.ErrUnexpectedEOF
	case err != nil:
		return "", err
	}
	line = bytes.TrimSuffix(line[:len(line)-1], []byte{'\r'})
	if len(line) > MaxLineSize {
		return "", ErrLineTooLong
	}
	if !utf8.Valid(line) {
		return "", ErrInvalidUTF8
	}
	return string(line), nil
}

// WriteLine writes one message, appending the terminator if missing.
func (p *LineReadWriter) WriteLine(msg string) error {
	if n := len(msg); n == 0 || msg[n-1] != Delimiter {
		msg += string(Delimiter)
	}
	if len(msg) > MaxLineSize+1 {
		return ErrLineTooLong
	}
	_, err := io.WriteString(p.w, msg)
	return err
}

func (p *LineReadWriter) discardLine() {
	for {
		_, err := p.r.ReadSlice(Delimiter)
		if err != bufio.ErrBufferFull {
			return
		}
	}
}
