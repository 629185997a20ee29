package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/yksirotta/credflow/pkg/domain"
)

// DigestChallenge is the parsed WWW-Authenticate: Digest header.
type DigestChallenge struct {
	Realm  string
	Nonce  string
	Opaque string
	QOP    string
}

var digestParamPattern = regexp.MustCompile(`(\w+)=(?:"([^"]*)"|([^\s,]+))`)

// ParseDigestChallenge extracts realm, nonce and the optional opaque/qop
// parameters from a WWW-Authenticate header. Returns false when the header
// is not a digest challenge.
func ParseDigestChallenge(header string) (DigestChallenge, bool) {
	trimmed := strings.TrimSpace(header)
	if !strings.HasPrefix(strings.ToLower(trimmed), "digest ") {
		return DigestChallenge{}, false
	}

	challenge := DigestChallenge{}
	for _, match := range digestParamPattern.FindAllStringSubmatch(trimmed[len("digest "):], -1) {
		value := match[2]
		if value == "" {
			value = match[3]
		}
		switch strings.ToLower(match[1]) {
		case "realm":
			challenge.Realm = value
		case "nonce":
			challenge.Nonce = value
		case "opaque":
			challenge.Opaque = value
		case "qop":
			challenge.QOP = value
		}
	}

	if challenge.Nonce == "" {
		return DigestChallenge{}, false
	}

	return challenge, true
}

// DigestResponder answers a digest challenge for a basic-auth credential
// pair. CNonce is overridable for deterministic tests.
type DigestResponder struct {
	CNonce func() string
}

// Authorization computes the Digest authorization header for the request.
// With a qop=auth challenge the RFC 2617 formula applies
// (md5(HA1:nonce:nc:cnonce:auth:HA2)); without qop the RFC 2069 form
// (md5(HA1:nonce:HA2)) is used.
func (d *DigestResponder) Authorization(challenge DigestChallenge, auth *domain.BasicAuthPair, method, requestURL string) (string, error) {
	parsed, err := url.Parse(requestURL)
	if err != nil {
		return "", fmt.Errorf("invalid request url: %w", err)
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}

	ha1 := md5Hex(auth.Username + ":" + challenge.Realm + ":" + auth.Password)
	ha2 := md5Hex(strings.ToUpper(method) + ":" + path)

	var b strings.Builder
	fmt.Fprintf(&b, `Digest username="%s", realm="%s", nonce="%s", uri="%s"`,
		auth.Username, challenge.Realm, challenge.Nonce, path)

	if strings.Contains(challenge.QOP, "auth") {
		cnonce := d.cnonce()
		const nonceCount = "00000001"
		response := md5Hex(ha1 + ":" + challenge.Nonce + ":" + nonceCount + ":" + cnonce + ":auth:" + ha2)
		fmt.Fprintf(&b, `, qop=auth, nc=%s, cnonce="%s", response="%s"`, nonceCount, cnonce, response)
	} else {
		response := md5Hex(ha1 + ":" + challenge.Nonce + ":" + ha2)
		fmt.Fprintf(&b, `, response="%s"`, response)
	}

	if challenge.Opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, challenge.Opaque)
	}

	return b.String(), nil
}

func (d *DigestResponder) cnonce() string {
	if d.CNonce != nil {
		return d.CNonce()
	}

	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(raw)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
