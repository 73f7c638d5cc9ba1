package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNS classes attached to navigation failures.
const (
	DNSResolves     = "RESOLVES"
	DNSNXDomain     = "NXDOMAIN"
	DNSServFail     = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName  = "INVALID_NAME"
	dnsClassTimeout = 3 * time.Second
)

type hostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// classifyHost tells apart a site that is down from a name that does not resolve.
func classifyHost(ctx context.Context, r hostResolver, host string) string {
	host = strings.TrimSpace(host)
	if host == "" || strings.Contains(host, "://") {
		return DNSInvalidName
	}

	ctx, cancel := context.WithTimeout(ctx, dnsClassTimeout)
	defer cancel()

	addrs, err := r.LookupHost(ctx, host)
	if err == nil && len(addrs) > 0 {
		return DNSResolves
	}
	var de *net.DNSError
	if errors.As(err, &de) && de.IsNotFound {
		return DNSNXDomain
	}
	return DNSServFail
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return u.Hostname()
}
