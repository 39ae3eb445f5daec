package baseurl

import (
	"net"
	"net/url"
	"strings"

	"github.com/vibast-solutions/ms-go-checkout/app/factory"
)

type Source string

const (
	SourceConfiguredOrigin   Source = "configured_origin"
	SourceForwardedHostProd  Source = "forwarded_host_production"
	SourceRefererProd        Source = "referer_production"
	SourceForwardedHost      Source = "forwarded_host"
	SourceReferer            Source = "referer"
	SourceHost               Source = "host"
	SourceProductionFallback Source = "production_fallback"
	SourceRequestOrigin      Source = "request_origin"
)

type Config struct {
	PublicOrigin     string
	ProductionDomain string
	Production       bool
}

// Request holds the inbound values the resolver looks at. Scheme is the scheme the
// request actually arrived with, before any proxy headers are considered.
type Request struct {
	ForwardedHost  string
	ForwardedProto string
	Referer        string
	Host           string
	Scheme         string
}

type Result struct {
	Origin string
	Source Source
}

var logger = factory.NewModuleLogger("baseurl-resolver")

func Resolve(cfg Config, req Request) Result {
	if origin, ok := absoluteOrigin(cfg.PublicOrigin); ok {
		return Result{Origin: origin, Source: SourceConfiguredOrigin}
	}

	domain := strings.ToLower(strings.TrimSpace(cfg.ProductionDomain))
	forwardedHost := cleanHost(firstValue(req.ForwardedHost))
	forwardedProto := strings.ToLower(firstValue(req.ForwardedProto))
	refererOrigin, refererHost := parseReferer(req.Referer)
	host := cleanHost(req.Host)

	if forwardedHost != "" && matchesDomain(forwardedHost, domain) {
		return Result{Origin: schemeOr(forwardedProto, "https") + "://" + forwardedHost, Source: SourceForwardedHostProd}
	}
	if refererOrigin != "" && matchesDomain(refererHost, domain) {
		return Result{Origin: refererOrigin, Source: SourceRefererProd}
	}
	if forwardedHost != "" && !IsLoopback(forwardedHost) {
		return Result{Origin: schemeOr(forwardedProto, "https") + "://" + forwardedHost, Source: SourceForwardedHost}
	}
	if refererOrigin != "" && !IsLoopback(refererHost) {
		return Result{Origin: refererOrigin, Source: SourceReferer}
	}
	if host != "" && !IsLoopback(host) {
		return Result{Origin: schemeOr(forwardedProto, schemeOr(req.Scheme, "http")) + "://" + host, Source: SourceHost}
	}
	if cfg.Production && domain != "" {
		return Result{Origin: "https://" + domain, Source: SourceProductionFallback}
	}

	if host == "" {
		host = "localhost"
	}
	origin := schemeOr(req.Scheme, "http") + "://" + host
	if IsLoopback(host) {
		logger.WithField("origin", origin).Warn("Resolved base url is a loopback address")
	}
	return Result{Origin: origin, Source: SourceRequestOrigin}
}

// IsAbsoluteHTTPURL reports whether raw parses as an http or https URL with a host.
func IsAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Join resolves a caller-supplied path against origin. Absolute http(s) URLs are kept.
func Join(origin, pathOrURL string) string {
	pathOrURL = strings.TrimSpace(pathOrURL)
	if IsAbsoluteHTTPURL(pathOrURL) {
		return pathOrURL
	}
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if pathOrURL == "" {
		return origin
	}
	return origin + "/" + strings.TrimLeft(pathOrURL, "/")
}

func IsLoopback(host string) bool {
	hostname := strings.ToLower(hostOnly(host))
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsUnspecified()
}

func absoluteOrigin(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", false
	}
	return scheme + "://" + u.Host, true
}

func parseReferer(raw string) (string, string) {
	origin, ok := absoluteOrigin(raw)
	if !ok {
		return "", ""
	}
	u, _ := url.Parse(origin)
	return origin, strings.ToLower(u.Host)
}

// cleanHost returns host only when it is a bare host[:port] value.
func cleanHost(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	u, err := url.Parse("http://" + raw)
	if err != nil || u.Host != raw || u.Path != "" || u.User != nil {
		return ""
	}
	return raw
}

func matchesDomain(host, domain string) bool {
	if domain == "" || host == "" {
		return false
	}
	hostname := hostOnly(host)
	return hostname == domain || strings.HasSuffix(hostname, "."+domain)
}

func hostOnly(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return strings.Trim(h, "[]")
	}
	return strings.Trim(host, "[]")
}

func firstValue(raw string) string {
	if idx := strings.Index(raw, ","); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.TrimSpace(raw)
}

func schemeOr(scheme, fallback string) string {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "http" || scheme == "https" {
		return scheme
	}
	return fallback
}
