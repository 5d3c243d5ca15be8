// Package fetch provides the per-session request-coalescing cache for
// upstream calls. A screening session owns one Session; every adapter call
// flows through it keyed by the canonical request form, so identical calls
// within a session collapse to a single outbound request.
package fetch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/gowebpki/jcs"
)

// Key builds the canonical cache key for an upstream call:
// method, URL, canonically sorted parameters, canonical JSON body.
// Two calls that differ only in parameter order or in JSON key order
// produce identical keys.
func Key(method, rawURL string, params url.Values, body []byte) (string, error) {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(rawURL)
	b.WriteByte('?')
	b.WriteString(canonicalParams(params))
	b.WriteByte('#')
	if len(body) > 0 {
		canon, err := jcs.Transform(body)
		if err != nil {
			return "", fmt.Errorf("fetch: canonicalize body: %w", err)
		}
		b.Write(canon)
	}
	return b.String(), nil
}

// KeyJSON is Key for a body given as a Go value. Callers normalize semantic
// list order (e.g. bulk IMO arrays) before passing the value; JSON arrays
// are order-significant, so canonicalization alone cannot do it for them.
func KeyJSON(method, rawURL string, params url.Values, body any) (string, error) {
	if body == nil {
		return Key(method, rawURL, params, nil)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("fetch: marshal body: %w", err)
	}
	return Key(method, rawURL, params, raw)
}

// canonicalParams renders params with keys sorted and each key's values
// sorted, so value-list order never changes the key.
func canonicalParams(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for j, v := range vals {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
