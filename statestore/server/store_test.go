// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package server

import (
	"testing"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/internal/resp"
	"github.com/stretchr/testify/require"
)

func cmd(args ...string) [][]byte {
	out := make([][]byte, len(args))
	for i, a := range args {
		out[i] = []byte(a)
	}
	return out
}

func TestStoreGetSetDel(t *testing.T) {
	s := NewStore(0)

	reply, _ := s.Execute("a", cmd("GET", "weight"))
	require.Equal(t, "$-1\r\n", string(reply))

	reply, _ = s.Execute("a", cmd("SET", "weight", "50"))
	require.Equal(t, "+OK\r\n", string(reply))

	reply, _ = s.Execute("a", cmd("GET", "weight"))
	require.Equal(t, "$2\r\n50\r\n", string(reply))

	reply, _ = s.Execute("a", cmd("SET", "weight", "49", "NX"))
	require.Equal(t, ":-1\r\n", string(reply))

	reply, _ = s.Execute("a", cmd("SET", "weight", "50", "NEX"))
	require.Equal(t, "+OK\r\n", string(reply))

	reply, _ = s.Execute("a", cmd("DEL", "weight"))
	require.Equal(t, ":1\r\n", string(reply))
	reply, _ = s.Execute("a", cmd("DEL", "weight"))
	require.Equal(t, ":0\r\n", string(reply))
	require.Zero(t, s.Len())
}

func TestStoreErrors(t *testing.T) {
	s := NewStore(0)
	for _, c := range []struct {
		args  [][]byte
		reply string
	}{
		{cmd("PING"), "-ERR unknown command\r\n"},
		{cmd("GET"), "-ERR wrong number of arguments\r\n"},
		{cmd("GET", ""), "-ERR the key length is zero\r\n"},
		{cmd("SET", "k"), "-ERR wrong number of arguments\r\n"},
		{cmd("SET", "k", "v", "PX"), "-ERR syntax error\r\n"},
		{cmd("SET", "k", "v", "PX", "soon"), "-ERR syntax error\r\n"},
		{cmd("SET", "k", "v", "XX"), "-ERR syntax error\r\n"},
		{nil, "-ERR syntax error\r\n"},
	} {
		reply, _ := s.Execute("a", c.args)
		require.Equal(t, c.reply, string(reply))
	}

	reply, _ := s.Execute("", cmd("KEYNOTIFY", "k"))
	require.Equal(t, "-ERR the request does not identify the invoking client\r\n", string(reply))
}

func TestStoreNotifications(t *testing.T) {
	s := NewStore(0)

	reply, _ := s.Execute("monitor", cmd("KEYNOTIFY", "remaining"))
	require.Equal(t, "+OK\r\n", string(reply))
	reply, _ = s.Execute("monitor", cmd("KEYNOTIFY", "remaining"))
	require.Equal(t, ":0\r\n", string(reply))

	_, notes := s.Execute("device", cmd("SET", "remaining", "1500"))
	require.Len(t, notes, 1)
	require.Equal(t, "monitor", notes[0].ClientID)
	require.Equal(t, "remaining", notes[0].Key)
	require.Equal(t,
		resp.Op("NOTIFY", []byte("SET"), []byte("VALUE"), []byte("1500")),
		notes[0].Payload(),
	)

	_, notes = s.Execute("device", cmd("DEL", "remaining"))
	require.Len(t, notes, 1)
	require.Equal(t, resp.Op("NOTIFY", []byte("DELETE")), notes[0].Payload())

	reply, _ = s.Execute("monitor", cmd("KEYNOTIFY", "remaining", "STOP"))
	require.Equal(t, "+OK\r\n", string(reply))
	_, notes = s.Execute("device", cmd("SET", "remaining", "1400"))
	require.Empty(t, notes)
}

func TestStoreExpiry(t *testing.T) {
	s := NewStore(0)
	s.Execute("monitor", cmd("KEYNOTIFY", "weight"))

	reply, _ := s.Execute("device", cmd("SET", "weight", "50", "PX", "1"))
	require.Equal(t, "+OK\r\n", string(reply))

	require.Eventually(t, func() bool {
		reply, _ := s.Execute("a", cmd("GET", "weight"))
		return string(reply) == "$-1\r\n"
	}, time.Second, 5*time.Millisecond)

	notes := s.Expire()
	require.Len(t, notes, 1)
	require.Equal(t, "DELETE", notes[0].Operation)
	require.Empty(t, s.Expire())
}
