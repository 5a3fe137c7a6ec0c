// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package sync

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// decodeHTML converts a crawled page to UTF-8. Valid UTF-8 is used as is;
// otherwise a charset declared in the document is tried, then Windows-1252,
// then ISO-8859-1, and finally invalid bytes are replaced.
func decodeHTML(body []byte) string {
	if utf8.Valid(body) {
		return string(body)
	}

	if enc, name, _ := charset.DetermineEncoding(body, "text/html"); name != "utf-8" {
		if s, ok := decodeWith(enc, body); ok {
			return s
		}
	}

	for _, enc := range []encoding.Encoding{charmap.Windows1252, charmap.ISO8859_1} {
		if s, ok := decodeWith(enc, body); ok {
			return s
		}
	}

	return strings.ToValidUTF8(string(body), "\uFFFD")
}

func decodeWith(enc encoding.Encoding, body []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil || !utf8.Valid(out) {
		return "", false
	}
	return string(out), true
}
