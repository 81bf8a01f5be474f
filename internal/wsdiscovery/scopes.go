package wsdiscovery

import (
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/muurk/onvifdiscovery/internal/logging"
)

// scopeMatchTimeout bounds every regex evaluation over scope text, which
// comes straight off the network.
const scopeMatchTimeout = 500 * time.Millisecond

var (
	hardwarePattern     = mustCompileScope(`(?<=hardware/)(?<value>\S*)`)
	manufacturerPattern = mustCompileScope(`(?:mfr|manufacturer)/(?<value>\S*)`)
	namePattern         = mustCompileScope(`name/(?<value>\S*)`)
)

func mustCompileScope(expr string) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, regexp2.None)
	re.MatchTimeout = scopeMatchTimeout
	return re
}

// scopeValue returns the named "value" group of re in token. A match
// timeout counts as no match.
func scopeValue(re *regexp2.Regexp, token string) (string, bool) {
	m, err := re.FindStringMatch(token)
	if err != nil {
		logging.Debug("Scope match aborted",
			zap.String("token", token),
			zap.Error(err),
		)
		return "", false
	}
	if m == nil {
		return "", false
	}
	g := m.GroupByName("value")
	if g == nil {
		return "", false
	}
	return g.String(), true
}

func unescapeScope(v string) string {
	decoded, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return decoded
}

func firstToken(tokens []string, markers ...string) (string, bool) {
	for _, tok := range tokens {
		for _, marker := range markers {
			if strings.Contains(tok, marker) {
				return tok, true
			}
		}
	}
	return "", false
}

// ParseModel returns the percent-decoded value of the first hardware/ scope,
// or "" when there is none.
func ParseModel(scopes string) string {
	tok, ok := firstToken(SplitList(scopes), "hardware/")
	if !ok {
		return ""
	}
	v, ok := scopeValue(hardwarePattern, tok)
	if !ok {
		return ""
	}
	return unescapeScope(v)
}

// ParseManufacturer prefers a mfr/ or manufacturer/ scope, returned verbatim
// after decoding. Without one it falls back to the first word of the first
// name/ scope.
func ParseManufacturer(scopes string) string {
	tokens := SplitList(scopes)

	if tok, ok := firstToken(tokens, "mfr/", "manufacturer/"); ok {
		v, _ := scopeValue(manufacturerPattern, tok)
		return unescapeScope(v)
	}

	if tok, ok := firstToken(tokens, "name/"); ok {
		v, _ := scopeValue(namePattern, tok)
		v = unescapeScope(v)
		if strings.Contains(v, " ") {
			v = strings.SplitN(v, " ", 2)[0]
		}
		return v
	}

	return ""
}

// SplitList splits a whitespace separated field into its tokens.
// Empty input yields an empty, non-nil slice.
func SplitList(s string) []string {
	fields := strings.Fields(s)
	if fields == nil {
		return []string{}
	}
	return fields
}

// NewDevice builds a Device from a probe match. Address comes from the
// datagram source, never from the payload.
func NewDevice(match ProbeMatch, src *net.UDPAddr) Device {
	var address string
	if src != nil && src.IP != nil {
		address = src.IP.String()
	}

	return Device{
		Types:             SplitList(match.Types),
		XAddresses:        SplitList(match.XAddrs),
		Model:             ParseModel(match.Scopes),
		Mfr:               ParseManufacturer(match.Scopes),
		Address:           address,
		Scopes:            SplitList(match.Scopes),
		EndpointReference: strings.TrimSpace(match.EndpointReference.Address),
		MetadataVersion:   strings.TrimSpace(match.MetadataVersion),
	}
}
