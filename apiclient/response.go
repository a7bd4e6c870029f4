package apiclient

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	internalerrors "github.com/jrsteele09/go-contractor-session/internal/errors"
	"github.com/pkg/errors"
)

// Response is a successful (2xx) backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsJSON reports whether the Content-Type header declares JSON.
func (r *Response) IsJSON() bool {
	return isJSONContentType(r.Header.Get("Content-Type"))
}

// Decode unmarshals a JSON body into v.
func (r *Response) Decode(v any) error {
	if !r.IsJSON() {
		return internalerrors.ErrNotJSON
	}
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "[Response.Decode] json.Unmarshal")
	}
	return nil
}

func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
