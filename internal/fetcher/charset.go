package fetcher

import (
	"io"
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// decodeBody wraps r with a UTF-8 decoder when contentType names a text
// media type with a non-UTF-8 charset. Binary bodies pass through untouched.
func decodeBody(r io.Reader, contentType string) io.Reader {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "text/") {
		return r
	}
	cs := strings.ToLower(params["charset"])
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return r
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return r
	}
	return enc.NewDecoder().Reader(r)
}

type readCloser struct {
	io.Reader
	io.Closer
}
