package tokens

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// jsonGrantTransport adapts x/oauth2 token requests to the backing store,
// which only accepts JSON grant bodies and unescaped basic credentials.
type jsonGrantTransport struct {
	base     http.RoundTripper
	username string
	password string
}

func (t *jsonGrantTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	form, err := readForm(req)
	if err != nil {
		return nil, err
	}

	grant := make(map[string]string, len(form))
	for key := range form {
		grant[key] = form.Get(key)
	}
	body, err := json.Marshal(grant)
	if err != nil {
		return nil, fmt.Errorf("encoding token grant: %w", err)
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	out.ContentLength = int64(len(body))
	out.Header.Set("Content-Type", "application/json")
	out.Header.Set("Content-Length", strconv.Itoa(len(body)))
	// x/oauth2 query-escapes credentials sent in the header
	out.SetBasicAuth(t.username, t.password)

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(out)
}

func readForm(req *http.Request) (url.Values, error) {
	if req.Body == nil {
		return url.Values{}, nil
	}
	defer req.Body.Close()

	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token grant: %w", err)
	}
	form, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing token grant: %w", err)
	}
	return form, nil
}
