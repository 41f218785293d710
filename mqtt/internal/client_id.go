// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package internal

import (
	"strings"

	"github.com/google/uuid"
)

// RandomClientID returns a 23-character client ID, the longest length every
// MQTT server must accept [MQTT-3.1.3-5].
func RandomClientID(prefix string) string {
	id := prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(id) > 23 {
		id = id[:23]
	}
	return id
}
