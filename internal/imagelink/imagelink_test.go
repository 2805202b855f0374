package imagelink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConvertToDirectLink(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"google drive", "https://drive.google.com/file/d/abc123/view?usp=sharing", "https://drive.google.com/uc?export=download&id=abc123"},
		{"dropbox", "https://www.dropbox.com/s/xyz/shot.png?dl=0", "https://www.dropbox.com/s/xyz/shot.png?dl=1"},
		{"dropbox without query", "https://www.dropbox.com/s/xyz/shot.png", "https://www.dropbox.com/s/xyz/shot.png?dl=1"},
		{"onedrive", "https://onedrive.live.com/redir?id=F00&cid=C1D", "https://onedrive.live.com/download?id=F00&cid=C1D"},
		{"onedrive without id", "https://onedrive.live.com/view", "https://onedrive.live.com/view"},
		{"sharepoint personal", "https://acme-my.sharepoint.com/:i:/g/personal/jo_acme_com/EaBc123", "https://acme-my.sharepoint.com/personal/jo_acme_com/_layouts/15/download.aspx?UniqueId=EaBc123"},
		{"sharepoint site", "https://acme.sharepoint.com/:i:/g/sites/qa/shot.png", "https://acme.sharepoint.com/_layouts/15/download.aspx?SourceUrl=/sites/qa/shot.png"},
		{"jam", "https://jam.dev/cdn-cgi/image/width=800,quality=80/https://cdn.jam.dev/shot.png", "https://cdn.jam.dev/shot.png"},
		{"plain", "https://example.com/a.png", "https://example.com/a.png"},
		{"garbage", "not a url", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConvertToDirectLink(tt.in))
		})
	}
}

func TestValidatorAcceptsImage(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.Header().Set("Content-Type", "image/png")
	}))
	defer srv.Close()

	result := NewValidator(srv.Client(), time.Second, nil).Validate(context.Background(), srv.URL+"/shot.png")
	assert.True(t, result.Valid, result.Error)
	assert.Equal(t, http.MethodHead, method)
}

func TestValidatorRejections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Header().Set("Content-Type", "image/png")
		}
	}))
	defer srv.Close()

	v := NewValidator(srv.Client(), 50*time.Millisecond, nil)
	ctx := context.Background()

	assert.Equal(t, "HTTP 404: Not Found", v.Validate(ctx, srv.URL+"/missing").Error)
	assert.Equal(t, "URL does not point to an image", v.Validate(ctx, srv.URL+"/page").Error)
	assert.Equal(t, "Request timed out", v.Validate(ctx, srv.URL+"/slow").Error)
	assert.Equal(t, "Invalid URL format", v.Validate(ctx, "ftp//nope").Error)
	assert.Equal(t, "Invalid URL format", v.Validate(ctx, "").Error)
}

func TestValidatePasted(t *testing.T) {
	assert.True(t, ValidatePasted("image/png", 1024).Valid)
	assert.True(t, ValidatePasted("Image/JPEG; charset=binary", 1024).Valid)
	assert.Equal(t, "Pasted data is not an image", ValidatePasted("text/plain", 10).Error)
	assert.Equal(t, "Unsupported image type", ValidatePasted("image/tiff", 10).Error)
	assert.Equal(t, "Image size exceeds 5MB limit", ValidatePasted("image/png", MaxPastedImageBytes+1).Error)
}

func TestDefaultValidatorRefusesLocalAddresses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
	}))
	defer srv.Close()

	v := NewValidator(nil, time.Second, nil)
	ctx := context.Background()

	result := v.Validate(ctx, srv.URL+"/internal/admin")
	assert.False(t, result.Valid)
	assert.Equal(t, "URL points to a private or local address", result.Error)

	localhost := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1)
	assert.False(t, v.Validate(ctx, localhost+"/internal/admin").Valid)

	assert.Equal(t, int32(0), hits.Load())
}

func TestGuardDial(t *testing.T) {
	blocked := []string{"127.0.0.1:80", "[::1]:443", "10.1.2.3:80", "192.168.0.10:8080", "169.254.169.254:80", "0.0.0.0:80", "[fe80::1]:80"}
	for _, address := range blocked {
		if err := guardDial("tcp", address, nil); !errors.Is(err, ErrBlockedAddress) {
			t.Errorf("guardDial(%q) = %v, want ErrBlockedAddress", address, err)
		}
	}
	for _, address := range []string{"93.184.216.34:443", "[2606:2800:220:1:248:1893:25c8:1946]:80"} {
		assert.NoError(t, guardDial("tcp", address, nil), address)
	}
}

func TestPublicClientStopsRedirectLoops(t *testing.T) {
	client := NewPublicClient()
	req := httptest.NewRequest(http.MethodHead, "https://example.com/a.png", nil)
	via := make([]*http.Request, maxRedirects)
	assert.Error(t, client.CheckRedirect(req, via))
	assert.NoError(t, client.CheckRedirect(req, via[:1]))

	ftp := httptest.NewRequest(http.MethodHead, "https://example.com/a.png", nil)
	ftp.URL.Scheme = "ftp"
	assert.Error(t, client.CheckRedirect(ftp, via[:1]))
}
