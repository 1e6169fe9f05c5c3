// Package authpolicy decides from a topic name whether joining it needs a
// bearer credential.
//
// Topics are colon-delimited; the first segment is itself hyphen-delimited.
// A topic is exempt when any hyphen component of its first segment is
// ExemptMarker, e.g. "push-no_auth:some:such".
package authpolicy

import "strings"

const ExemptMarker = "no_auth"

func ShouldAuth(topic string) bool {
	head, _, _ := strings.Cut(topic, ":")
	for _, part := range strings.Split(head, "-") {
		if part == ExemptMarker {
			return false
		}
	}
	return true
}
