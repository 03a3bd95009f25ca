package payfast

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Encode percent-encodes a value the way the gateway hashes it: space as '+',
// everything outside A-Z a-z 0-9 - _ . ~ escaped with uppercase hex. That
// includes ! ' ( ) * which JavaScript-style encoders leave alone.
func Encode(value string) string {
	return url.QueryEscape(value)
}

// Sign computes the outbound signature over fs in canonical order. The
// signature field itself is never part of the input.
func Sign(fs FieldSet, passphrase string) string {
	return digest(fs.unsigned().ParamString(), passphrase)
}

// SignNotification computes the inbound signature: every received key except
// signature, sorted alphabetically, blank values dropped.
func SignNotification(values map[string]string, passphrase string) string {
	keys := make([]string, 0, len(values))
	for k, v := range values {
		if k == FieldSignature || strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(Encode(strings.TrimSpace(values[k])))
	}
	return digest(b.String(), passphrase)
}

// VerifyNotification reports whether values carries a signature matching the
// recomputed inbound digest.
func VerifyNotification(values map[string]string, passphrase string) bool {
	got := strings.ToLower(strings.TrimSpace(values[FieldSignature]))
	if got == "" {
		return false
	}
	want := SignNotification(values, passphrase)
	return hmac.Equal([]byte(got), []byte(want))
}

func digest(paramString, passphrase string) string {
	if p := strings.TrimSpace(passphrase); p != "" {
		paramString += "&passphrase=" + Encode(p)
	}
	sum := md5.Sum([]byte(paramString))
	return hex.EncodeToString(sum[:])
}
