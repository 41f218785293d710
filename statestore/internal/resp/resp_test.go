// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package resp_test

import (
	"testing"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/errors"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/internal/resp"
	"github.com/stretchr/testify/require"
)

func TestFormatOp(t *testing.T) {
	require.Equal(t,
		[]byte("*2\r\n$3\r\nGET\r\n$6\r\nweight\r\n"),
		resp.OpK("GET", "weight"),
	)
	require.Equal(t,
		[]byte("*3\r\n$9\r\nKEYNOTIFY\r\n$6\r\nweight\r\n$4\r\nSTOP\r\n"),
		resp.OpK("KEYNOTIFY", "weight", "STOP"),
	)
	require.Equal(t,
		[]byte("*3\r\n$3\r\nSET\r\n$6\r\nweight\r\n$4\r\n50.5\r\n"),
		resp.Op("SET", []byte("weight"), []byte("50.5")),
	)
}

func TestFormatReplies(t *testing.T) {
	require.Equal(t, []byte("+OK\r\n"), resp.FormatString("OK"))
	require.Equal(t, []byte(":-1\r\n"), resp.FormatNumber(-1))
	require.Equal(t, []byte("$-1\r\n"), resp.FormatBlob(nil))
	require.Equal(t, []byte("$0\r\n\r\n"), resp.FormatBlob([]byte{}))
	require.Equal(t, []byte("-ERR syntax error\r\n"), resp.FormatError("syntax error"))
}

func TestParseError(t *testing.T) {
	_, err := resp.String([]byte("-ERR syntax error\r\n"))
	require.Equal(t, "service error: syntax error", err.Error())
	require.ErrorIs(t, err, errors.ErrService)
	require.Equal(t, errors.SyntaxError, err)
}

func TestParseString(t *testing.T) {
	str, err := resp.String([]byte("+OK\r\n"))
	require.NoError(t, err)
	require.Equal(t, "OK", str)

	_, err = resp.String([]byte(":1\r\n"))
	require.ErrorIs(t, err, errors.ErrPayload)
}

func TestParseNumber(t *testing.T) {
	num, err := resp.Number([]byte(":1\r\n"))
	require.NoError(t, err)
	require.Equal(t, 1, num)

	_, err = resp.Number([]byte(":one\r\n"))
	require.ErrorIs(t, err, errors.ErrPayload)
}

func TestParseBlob(t *testing.T) {
	blob, err := resp.Blob([]byte("$-1\r\n"))
	require.NoError(t, err)
	require.Nil(t, blob)

	blob, err = resp.Blob([]byte("$0\r\n\r\n"))
	require.NoError(t, err)
	require.NotNil(t, blob)
	require.Empty(t, blob)

	blob, err = resp.Blob([]byte("$4\r\n48.5\r\n"))
	require.NoError(t, err)
	require.Equal(t, []byte("48.5"), blob)

	_, err = resp.Blob([]byte("$10\r\n48.5\r\n"))
	require.ErrorIs(t, err, errors.ErrPayload)

	_, err = resp.Blob([]byte("$2\r\n48.5\r\n"))
	require.ErrorIs(t, err, errors.ErrPayload)
}

func TestParseBlobArray(t *testing.T) {
	ary, err := resp.BlobArray([]byte(
		"*4\r\n$6\r\nNOTIFY\r\n$3\r\nSET\r\n$5\r\nVALUE\r\n$3\r\n900\r\n",
	))
	require.NoError(t, err)
	require.Equal(t, [][]byte{
		[]byte("NOTIFY"), []byte("SET"), []byte("VALUE"), []byte("900"),
	}, ary)

	ary, err = resp.BlobArray(resp.OpK("KEYNOTIFY", "weight", "STOP"))
	require.NoError(t, err)
	require.Len(t, ary, 3)

	_, err = resp.BlobArray([]byte("*2\r\n$6\r\nNOTIFY\r\n"))
	require.ErrorIs(t, err, errors.ErrPayload)
}
