package imagelink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const blockedMessage = "URL points to a private or local address"

// DefaultTimeout bounds one validation request.
const DefaultTimeout = 5 * time.Second

// MaxPastedImageBytes caps images pasted or uploaded directly.
const MaxPastedImageBytes = 5 << 20

// PastedImageTypes lists the accepted content types for pasted images.
var PastedImageTypes = []string{"image/png", "image/jpeg", "image/jpg", "image/gif", "image/webp", "image/svg+xml"}

// Result reports whether a link points at an image.
type Result struct {
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
	DirectURL string `json:"directUrl,omitempty"`
}

// maxRedirects bounds how many redirects one check follows.
const maxRedirects = 5

// ErrBlockedAddress is returned when a link resolves to a loopback, private,
// link-local or unspecified address.
var ErrBlockedAddress = errors.New("address is not publicly routable")

// Validator checks image links over HTTP.
type Validator struct {
	client  *http.Client
	guarded bool
	timeout time.Duration
	logger  *zap.Logger
}

// NewValidator creates a validator. A nil client selects NewPublicClient;
// timeout <= 0 selects DefaultTimeout.
func NewValidator(client *http.Client, timeout time.Duration, logger *zap.Logger) *Validator {
	guarded := false
	if client == nil {
		client = NewPublicClient()
		guarded = true
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{client: client, guarded: guarded, timeout: timeout, logger: logger}
}

// NewPublicClient returns a client that only connects to publicly routable
// addresses. The check runs on the resolved address of every connection, so
// it also covers redirects and DNS names pointing inward.
func NewPublicClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: DefaultTimeout,
		Control: guardDial,
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   DefaultTimeout,
		ResponseHeaderTimeout: DefaultTimeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
			}
			return nil
		},
	}
}

func guardDial(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || blockedIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}

// Validate converts share links to direct links and issues a HEAD request.
// The link is valid when the response is 2xx with an image/* content type.
func (v *Validator) Validate(ctx context.Context, raw string) Result {
	parsed, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Result{Error: "Invalid URL format"}
	}

	direct := ConvertToDirectLink(parsed.String())
	result := Result{DirectURL: direct}

	if ip := net.ParseIP(parsed.Hostname()); v.guarded && ip != nil && blockedIP(ip) {
		result.Error = blockedMessage
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, direct, nil)
	if err != nil {
		result.Error = "Invalid URL format"
		return result
	}

	resp, err := v.client.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, ErrBlockedAddress):
			result.Error = blockedMessage
		case errors.Is(err, context.DeadlineExceeded):
			result.Error = "Request timed out"
		default:
			result.Error = "Network error"
		}
		v.logger.Debug("image link unreachable", zap.String("url", direct), zap.Error(err))
		return result
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	switch {
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		result.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	case !strings.HasPrefix(strings.ToLower(contentType), "image/"):
		result.Error = "URL does not point to an image"
	default:
		result.Valid = true
	}
	return result
}

// ValidatePasted checks the content type and size of an image supplied
// directly rather than by link.
func ValidatePasted(contentType string, size int64) Result {
	mediaType, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), ";")
	if !strings.HasPrefix(mediaType, "image/") {
		return Result{Error: "Pasted data is not an image"}
	}
	if !slices.Contains(PastedImageTypes, mediaType) {
		return Result{Error: "Unsupported image type"}
	}
	if size > MaxPastedImageBytes {
		return Result{Error: "Image size exceeds 5MB limit"}
	}
	return Result{Valid: true}
}
