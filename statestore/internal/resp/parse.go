// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package resp

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/errors"
)

func PayloadError(format string, args ...any) errors.Payload {
	return errors.Payload(fmt.Sprintf(format, args...))
}

// reader walks a RESP2 payload one element at a time.
type reader struct {
	data []byte
	pos  int
}

// line reads the next element header of the given type and returns its text.
func (r *reader) line(typ byte) (string, error) {
	rest := r.data[r.pos:]
	if len(rest) == 0 {
		return "", PayloadError("empty payload")
	}

	end := bytes.Index(rest, crlf)
	if end < 0 {
		return "", PayloadError("missing separator")
	}
	text := string(rest[1:end])

	switch rest[0] {
	case '-':
		return "", errors.Service(strings.TrimPrefix(text, "ERR "))
	case typ:
		r.pos += end + len(crlf)
		return text, nil
	default:
		return "", PayloadError("wrong type %q", rest[0])
	}
}

func (r *reader) number(typ byte) (int, error) {
	text, err := r.line(typ)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, PayloadError("invalid number %q", text)
	}
	return n, nil
}

func (r *reader) blob() ([]byte, error) {
	n, err := r.number('$')
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	if n < 0 {
		return nil, PayloadError("invalid length %d", n)
	}

	rest := r.data[r.pos:]
	if len(rest) < n+len(crlf) {
		return nil, PayloadError("insufficient data")
	}
	if !bytes.Equal(rest[n:n+len(crlf)], crlf) {
		return nil, PayloadError("missing separator")
	}

	// Copy so the result does not alias the MQTT payload buffer; an empty
	// value stays distinct from the null blob.
	blob := append(make([]byte, 0, n), rest[:n]...)
	r.pos += n + len(crlf)
	return blob, nil
}

// String parses a simple string reply.
func String(data []byte) (string, error) {
	return (&reader{data: data}).line('+')
}

// Number parses an integer reply.
func Number(data []byte) (int, error) {
	return (&reader{data: data}).number(':')
}

// Blob parses a bulk string reply. The null blob parses as nil.
func Blob(data []byte) ([]byte, error) {
	return (&reader{data: data}).blob()
}

// BlobArray parses an array of bulk strings.
func BlobArray(data []byte) ([][]byte, error) {
	r := &reader{data: data}
	n, err := r.number('*')
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, PayloadError("invalid array length %d", n)
	}

	ary := make([][]byte, n)
	for i := range ary {
		if ary[i], err = r.blob(); err != nil {
			return nil, err
		}
	}
	return ary, nil
}
