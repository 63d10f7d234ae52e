package ollama

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// Fragment is one decoded unit of the newline-delimited generate stream.
type Fragment struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	Error     string `json:"error,omitempty"`
}

// maxLineBytes bounds a single stream line so an untrusted server cannot
// stall cancellation with one huge synchronous parse.
const maxLineBytes = 2 * 1024 * 1024

type fragmentDecoder struct {
	sc   *bufio.Scanner
	done bool
}

func newFragmentDecoder(r io.Reader) *fragmentDecoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &fragmentDecoder{sc: sc}
}

// Next returns the next parsed fragment. Lines that are blank or fail to
// parse are dropped without terminating the stream; one malformed line must
// not abort an otherwise healthy stream. Next returns io.EOF after a fragment
// with done=true has been delivered or the underlying source ends cleanly;
// any other error is a transport failure.
func (d *fragmentDecoder) Next() (Fragment, error) {
	if d.done {
		return Fragment{}, io.EOF
	}
	for d.sc.Scan() {
		line := bytes.TrimSpace(d.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var f Fragment
		if err := json.Unmarshal(line, &f); err != nil {
			continue
		}
		if f.Done {
			d.done = true
		}
		return f, nil
	}
	if err := d.sc.Err(); err != nil {
		return Fragment{}, err
	}
	return Fragment{}, io.EOF
}
