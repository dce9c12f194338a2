package openai

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

type citationKey struct{}

type citationSink struct {
	citations []string
}

// citationTransport tees successful completion bodies and lifts their
// "citations" array into the sink carried by the request context.
type citationTransport struct {
	base http.RoundTripper
}

func (t *citationTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, err
	}

	sink, ok := req.Context().Value(citationKey{}).(*citationSink)
	if !ok {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	var extra struct {
		Citations []string `json:"citations"`
	}
	if json.Unmarshal(body, &extra) == nil {
		sink.citations = extra.Citations
	}

	return resp, nil
}
