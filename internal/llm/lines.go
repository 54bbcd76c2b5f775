package llm

import (
	"bufio"
	"io"
)

// maxLineSize bounds a single streamed line
const maxLineSize = 1 << 20

// LineDecoder turns one line of a streamed body into a text fragment.
// done ends the stream; an empty fragment is skipped.
type LineDecoder func(line []byte) (fragment string, done bool, err error)

type lineStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	decode  LineDecoder
	done    bool
}

// NewLineStream adapts a line-delimited HTTP body (SSE or NDJSON) to Stream
func NewLineStream(body io.ReadCloser, decode LineDecoder) Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineStream{body: body, scanner: scanner, decode: decode}
}

func (s *lineStream) Recv() (string, error) {
	for !s.done {
		if !s.scanner.Scan() {
			s.done = true
			if err := s.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}

		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		fragment, done, err := s.decode(line)
		if err != nil {
			s.done = true
			return "", err
		}
		if done {
			s.done = true
		}
		if fragment != "" {
			return fragment, nil
		}
	}
	return "", io.EOF
}

func (s *lineStream) Close() error {
	return s.body.Close()
}
