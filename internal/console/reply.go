// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"bytes"
	"strings"
)

const (
	terminatorOK = "OK\r\n"
	terminatorKO = "KO:"

	// A reply containing this anywhere is considered successful.
	successMarker = "OK"
)

var terminators = [...]string{terminatorOK, terminatorKO}

// maxTerminatorLen is the length of the longest terminator. A terminator
// may be split across two reads, so that many bytes of the already scanned
// data need to be scanned again.
const maxTerminatorLen = len(terminatorOK)

// Reply is the complete raw text of a single console round trip.
type Reply string

// Terminated returns true if the reply contains a success or failure
// terminator.
func (r Reply) Terminated() bool {
	return containsTerminator([]byte(r), 0)
}

// Successful returns true if the server reported success.
func (r Reply) Successful() bool {
	return strings.Contains(string(r), successMarker)
}

// Lines splits the reply into lines.
//
// Line breaks may be "\r\n", "\n" or "\r". A single trailing line break does
// not produce an empty last line.
func (r Reply) Lines() []string {
	if r == "" {
		return []string{}
	}

	normalized := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(string(r))
	normalized = strings.TrimSuffix(normalized, "\n")

	return strings.Split(normalized, "\n")
}

// Diagnostic returns the server's failure message if there is one, or the
// whole trimmed reply otherwise.
func (r Reply) Diagnostic() string {
	text := string(r)

	idx := strings.LastIndex(text, terminatorKO)
	if idx == -1 {
		return strings.TrimSpace(text)
	}

	return strings.TrimSpace(text[idx+len(terminatorKO):])
}

func containsTerminator(data []byte, from int) bool {
	from = max(0, from)
	if from > len(data) {
		return false
	}

	for _, terminator := range terminators {
		if bytes.Contains(data[from:], []byte(terminator)) {
			return true
		}
	}

	return false
}
