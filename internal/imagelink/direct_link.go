// Package imagelink normalizes cloud share links and checks that a URL
// serves an image.
package imagelink

import (
	"net/url"
	"strings"
)

// ConvertToDirectLink rewrites share links from Google Drive, Dropbox,
// OneDrive, SharePoint and jam.dev into direct download links. Anything else,
// including unparsable input, is returned unchanged.
func ConvertToDirectLink(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case host == "drive.google.com" && strings.HasPrefix(u.Path, "/file/d/"):
		parts := strings.Split(u.Path, "/")
		if len(parts) > 3 && parts[3] != "" {
			return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(parts[3])
		}

	case (host == "www.dropbox.com" || host == "dropbox.com") && strings.HasPrefix(u.Path, "/s/"):
		q := u.Query()
		q.Set("dl", "1")
		u.RawQuery = q.Encode()
		return u.String()

	case host == "onedrive.live.com" || host == "1drv.ms":
		q := u.Query()
		if id := q.Get("id"); id != "" {
			direct := "https://onedrive.live.com/download?id=" + url.QueryEscape(id)
			if cid := q.Get("cid"); cid != "" {
				direct += "&cid=" + url.QueryEscape(cid)
			}
			return direct
		}

	case strings.HasSuffix(host, "sharepoint.com") && strings.Contains(u.Path, "/:i:/"):
		if direct, ok := sharePointLink(u); ok {
			return direct
		}

	case strings.HasSuffix(host, "jam.dev") && strings.HasPrefix(u.Path, "/cdn-cgi/image/"):
		if source, ok := jamSource(raw); ok {
			return source
		}
	}
	return raw
}

func sharePointLink(u *url.URL) (string, bool) {
	_, filePath, ok := strings.Cut(u.Path, "/:i:/")
	if !ok {
		return "", false
	}
	origin := u.Scheme + "://" + u.Host

	if rest, personal := strings.CutPrefix(filePath, "g/personal/"); personal {
		parts := strings.Split(rest, "/")
		if len(parts) < 2 {
			return "", false
		}
		user, fileID := parts[0], parts[len(parts)-1]
		return origin + "/personal/" + user + "/_layouts/15/download.aspx?UniqueId=" + url.QueryEscape(fileID), true
	}
	if site, ok := strings.CutPrefix(filePath, "g/"); ok {
		return origin + "/_layouts/15/download.aspx?SourceUrl=/" + site, true
	}
	return "", false
}

// jamSource extracts the origin image from a Cloudflare resize URL of the
// form /cdn-cgi/image/<options>/<source>.
func jamSource(raw string) (string, bool) {
	_, rest, ok := strings.Cut(raw, "/cdn-cgi/image/")
	if !ok {
		return "", false
	}
	_, source, ok := strings.Cut(rest, "/")
	if !ok || !strings.HasPrefix(source, "https://") {
		return "", false
	}
	return source, true
}
