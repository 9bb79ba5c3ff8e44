package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MakeRequest builds a request with an optional JSON body.
func MakeRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, url, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req
}

// ParseJSONResponse decodes the recorded body into v.
func ParseJSONResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(resp.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to parse JSON response: %v\nBody: %s", err, resp.Body.String())
	}
}

// FindCookie returns the named cookie set on the response, or nil.
func FindCookie(resp *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

// SetCookie adds a cookie to an HTTP request
func SetCookie(req *http.Request, name, value string) {
	req.AddCookie(&http.Cookie{
		Name:  name,
		Value: value,
	})
}

// SetAuthHeader sets the Authorization header with a Bearer token
func SetAuthHeader(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// BackendRecorder is an httptest server that records the last request it
// received and answers with a canned status and body.
type BackendRecorder struct {
	*httptest.Server

	Status int
	Body   string

	Calls      int
	LastPath   string
	LastQuery  string
	LastMethod string
	LastAuth   string
	LastBody   []byte
}

// NewBackendRecorder starts a recorder answering 200 with body.
func NewBackendRecorder(t *testing.T, body string) *BackendRecorder {
	t.Helper()

	b := &BackendRecorder{Status: http.StatusOK, Body: body}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.Calls++
		b.LastPath = r.URL.Path
		b.LastQuery = r.URL.RawQuery
		b.LastMethod = r.Method
		b.LastAuth = r.Header.Get("Authorization")
		b.LastBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(b.Status)
		io.WriteString(w, b.Body)
	}))
	t.Cleanup(b.Close)

	return b
}
