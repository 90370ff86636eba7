package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/livepreview/internal/platform/errors"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// readMarkup reads the request body as UTF-8 text, transcoding from the
// Content-Type charset when one other than UTF-8 is declared.
func readMarkup(w http.ResponseWriter, r *http.Request, limit int64) (string, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", apperrors.WithMetadata(apperrors.CodePayloadTooLarge, "markup exceeds body limit",
				map[string]string{"limit": strconv.FormatInt(limit, 10)})
		}
		return "", apperrors.Wrap(apperrors.CodeInvalidArgument, "read body", err)
	}

	charset := requestCharset(r.Header.Get("Content-Type"))
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return string(raw), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", apperrors.WithMetadata(apperrors.CodeUnsupportedCharset, "unsupported charset",
			map[string]string{"charset": charset})
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidArgument, "decode body", err)
	}
	return string(decoded), nil
}

func requestCharset(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}

// parseScroll reads the optional scroll query value.
func parseScroll(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInvalidScroll, "scroll must be a number", err)
	}
	return value, nil
}
