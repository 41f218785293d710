// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/require"
)

func TestPacketLog(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{log.Wrap(slog.New(slog.NewJSONHandler(
		&buf,
		&slog.HandlerOptions{Level: slog.LevelDebug},
	)))}

	l.Packet(context.Background(), "publish", &paho.Publish{
		QoS:     1,
		Topic:   "statestore/v1/invoke",
		Payload: []byte("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"),
		Properties: &paho.PublishProperties{
			ResponseTopic: "clients/a/response",
			User:          paho.UserProperties{{Key: "k", Value: "v"}},
		},
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "publish", rec["msg"])
	require.Equal(t, "statestore/v1/invoke", rec["topic"])
	require.Equal(t, "clients/a/response", rec["response_topic"])
	require.EqualValues(t, 1, rec["qos"])
	require.Equal(t, map[string]any{"k": "v"}, rec["user"])
	require.NotContains(t, rec, "retain")
}

func TestPacketLogDisabled(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{log.Wrap(slog.New(slog.NewJSONHandler(&buf, nil)))}
	l.Packet(context.Background(), "publish", &paho.Publish{Topic: "t"})
	require.Zero(t, buf.Len())
}
