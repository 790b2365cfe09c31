package validation

import (
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// ErrUnroutableDestination is returned when a destination is neither a URL, a domain nor an IPv4 address.
var ErrUnroutableDestination = errors.New("destination is not a url, domain or ip address")

// DestinationKind describes how a stored destination should be turned into a redirect target.
type DestinationKind int

const (
	// KindUnknown is a destination that cannot be redirected to.
	KindUnknown DestinationKind = iota
	// KindURL is an absolute URL with a scheme and a host.
	KindURL
	// KindDomain is a bare domain name such as "example.com".
	KindDomain
	// KindIP is a bare IPv4 address, optionally followed by a port and a path.
	KindIP
)

func (k DestinationKind) String() string {
	switch k {
	case KindURL:
		return "url"
	case KindDomain:
		return "domain"
	case KindIP:
		return "ip"
	default:
		return "unknown"
	}
}

var (
	domainRe = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,63}\.?$`)

	urlSchemes = map[string]struct{}{
		"http":  {},
		"https": {},
		"ftp":   {},
	}
)

// ClassifyDestination reports which kind of destination s is.
// The checks run in order: absolute URL, bare domain, bare IPv4 address.
func ClassifyDestination(s string) DestinationKind {
	switch {
	case isURL(s):
		return KindURL
	case domainRe.MatchString(s):
		return KindDomain
	case isIPv4(strings.SplitN(s, ":", 2)[0]) && isURL("http://"+s):
		return KindIP
	default:
		return KindUnknown
	}
}

// RedirectTarget returns the location a client should be redirected to for the destination s.
// URLs are returned as is, domains and IP addresses get an "http://" prefix.
func RedirectTarget(s string) (string, error) {
	switch ClassifyDestination(s) {
	case KindURL:
		return s, nil
	case KindDomain, KindIP:
		return "http://" + s, nil
	default:
		return "", ErrUnroutableDestination
	}
}

func isURL(s string) bool {
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}

	u, err := url.Parse(s)
	if err != nil {
		return false
	}

	if _, ok := urlSchemes[strings.ToLower(u.Scheme)]; !ok {
		return false
	}

	host := u.Hostname()
	return host != "" && (domainRe.MatchString(host) || isIPv4(host) || host == "localhost")
}

func isIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil && strings.Count(s, ".") == 3
}
