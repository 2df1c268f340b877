package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"strings"
)

var emptyObject = json.RawMessage("{}")

// parseBody turns a response body into JSON.
//
// JSON content types must decode. Any other body is tried as JSON first; when that fails an
// OK response yields the text as a JSON string and an error response yields {"error": text}.
func parseBody(contentType string, raw []byte, ok bool) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return emptyObject, nil
	}
	if isJSONContentType(contentType) {
		if !json.Valid(trimmed) {
			if !ok {
				return wrapText(trimmed), nil
			}
			return nil, fmt.Errorf("response is not valid JSON")
		}
		return json.RawMessage(append([]byte(nil), trimmed...)), nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(append([]byte(nil), trimmed...)), nil
	}
	if ok {
		s, _ := json.Marshal(string(trimmed))
		return s, nil
	}
	return wrapText(trimmed), nil
}

func wrapText(b []byte) json.RawMessage {
	out, _ := json.Marshal(map[string]string{"error": string(b)})
	return out
}

func isJSONContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// details extracts a short description from an error body.
func details(body json.RawMessage, status int) string {
	var obj map[string]json.RawMessage
	if json.Unmarshal(body, &obj) == nil {
		for _, key := range []string{"error", "message", "detail"} {
			v, ok := obj[key]
			if !ok {
				continue
			}
			var s string
			if json.Unmarshal(v, &s) == nil {
				return s
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(v, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
			return string(v)
		}
	}
	return fmt.Sprintf("status %d", status)
}

// Decode unmarshals raw into T. Decode failures are reported as *Error so callers see a
// single failure type for everything that went wrong at the HTTP layer.
func Decode[T any](r Request, raw json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, &Error{
			Method:  r.method(),
			URL:     r.URL,
			RawBody: append([]byte(nil), raw...),
			Details: "decode response",
			Cause:   err,
		}
	}
	return out, nil
}

// ExecuteJSON executes r and decodes the response into T.
func ExecuteJSON[T any](ctx context.Context, c *Client, r Request) (T, error) {
	raw, err := c.Execute(ctx, r)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](r, raw)
}
