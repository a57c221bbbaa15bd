// Package proxy defines the proxy value type and the error taxonomy shared by
// the feed source, the validator and the rotating pool.
package proxy

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Proxy is a `host:port` egress address. Two proxies are equal when their
// string values are equal.
type Proxy string

// Parse validates a raw `host:port` token from a feed.
func Parse(raw string) (Proxy, error) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return "", errors.New("empty proxy address")
	}
	host, portStr, err := net.SplitHostPort(token)
	if err != nil {
		return "", fmt.Errorf("split proxy address %q: %w", token, err)
	}
	if host == "" {
		return "", fmt.Errorf("proxy address %q has no host", token)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", fmt.Errorf("proxy address %q has invalid port", token)
	}
	return Proxy(token), nil
}

// String returns the `host:port` form.
func (p Proxy) String() string {
	return string(p)
}

// URL renders the proxy as an http proxy URL.
func (p Proxy) URL() string {
	if p.IsZero() {
		return ""
	}
	return "http://" + string(p)
}

// IsZero reports whether p means "no proxy".
func (p Proxy) IsZero() bool {
	return p == ""
}

// Dedupe drops repeated proxies, keeping the first occurrence.
func Dedupe(in []Proxy) []Proxy {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Proxy]struct{}, len(in))
	out := make([]Proxy, 0, len(in))
	for _, p := range in {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
