// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package resp

import "strconv"

var crlf = []byte{'\r', '\n'}

// Op formats a command and its arguments as an array of bulk strings.
func Op(op string, args ...[]byte) []byte {
	data := header('*', len(args)+1)
	data = appendBlob(data, []byte(op))
	for _, arg := range args {
		data = appendBlob(data, arg)
	}
	return data
}

// OpK formats a command on a key with optional trailing string arguments.
func OpK(op, key string, rest ...string) []byte {
	args := make([][]byte, 0, len(rest)+1)
	args = append(args, []byte(key))
	for _, r := range rest {
		args = append(args, []byte(r))
	}
	return Op(op, args...)
}

// FormatString formats a simple string reply.
func FormatString(s string) []byte {
	return append(append([]byte{'+'}, s...), crlf...)
}

// FormatError formats an error reply.
func FormatError(msg string) []byte {
	return append(append([]byte("-ERR "), msg...), crlf...)
}

// FormatNumber formats an integer reply.
func FormatNumber(n int) []byte {
	return header(':', n)
}

// FormatBlob formats a bulk string reply; nil encodes as the null blob.
func FormatBlob(blob []byte) []byte {
	if blob == nil {
		return header('$', -1)
	}
	return appendBlob(nil, blob)
}

func header(typ byte, n int) []byte {
	data := strconv.AppendInt([]byte{typ}, int64(n), 10)
	return append(data, crlf...)
}

func appendBlob(data, blob []byte) []byte {
	data = append(data, header('$', len(blob))...)
	data = append(data, blob...)
	return append(data, crlf...)
}
