// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import "strings"

// IsTopicFilterMatch reports whether a topic name matches a topic filter,
// including shared subscription filters.
func IsTopicFilterMatch(topicFilter, topicName string) bool {
	const sharedPrefix = "$share/"

	if rest, ok := strings.CutPrefix(topicFilter, sharedPrefix); ok {
		_, filter, found := strings.Cut(rest, "/")
		if !found {
			return false
		}
		topicFilter = filter
	}

	// Wildcards never match topics beginning with $ [MQTT-4.7.2-1].
	if strings.HasPrefix(topicName, "$") &&
		(strings.HasPrefix(topicFilter, "+") ||
			strings.HasPrefix(topicFilter, "#")) {
		return false
	}

	filters := strings.Split(topicFilter, "/")
	names := strings.Split(topicName, "/")

	for i, filter := range filters {
		switch filter {
		case "#":
			return i == len(filters)-1
		case "+":
			if i >= len(names) {
				return false
			}
			continue
		}
		if i >= len(names) || filter != names[i] {
			return false
		}
	}

	return len(filters) == len(names)
}
