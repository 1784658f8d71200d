package beeswax

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testEmail    = "foo@bar.com"
	testPassword = "very good password"
	sessionName  = "sessionid"
)

// recordedRequest is what the fake API saw for one call.
type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeAPI is an httptest server standing in for Beeswax. Every request is
// recorded (JSON bodies decoded) before the handler runs.
type fakeAPI struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(raw))

		rec := recordedRequest{Method: r.Method, Path: r.URL.Path}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") && len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
		f.mu.Lock()
		f.requests = append(f.requests, rec)
		f.mu.Unlock()

		handler(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

// calls returns the recorded requests matching method and path.
func (f *fakeAPI) calls(method, path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeAPI) all() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

// writeJSON encodes v as JSON into w with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic("test helper writeJSON: " + err.Error())
	}
}

// envelope builds a Beeswax success document.
func envelope(payload any) map[string]any {
	return map[string]any{"success": true, "payload": payload}
}

// notFoundDoc mimics the validation error Beeswax returns for a missing object.
func notFoundDoc(action string) map[string]any {
	return map[string]any{
		"success": false,
		"payload": []any{
			map[string]any{"message": []string{"Could not load object 1234 to " + action}},
		},
	}
}

// authenticated handles /rest/authenticate by issuing a session cookie and
// reports whether any other request carries that cookie.
func authenticated(w http.ResponseWriter, r *http.Request) (handled bool, hasSession bool) {
	if r.URL.Path == authPath {
		http.SetCookie(w, &http.Cookie{Name: sessionName, Value: "abc", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return true, true
	}
	_, err := r.Cookie(sessionName)
	return false, err == nil
}

func newTestClient(t *testing.T, apiRoot string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	c, err := New(Config{
		APIRoot: apiRoot,
		Creds:   Credentials{Email: testEmail, Password: testPassword},
	}, opts...)
	require.NoError(t, err)
	return c
}

// pageItems returns n items numbered from start.
func pageItems(start, n int) []map[string]any {
	items := make([]map[string]any, 0, n)
	for i := start; i < start+n; i++ {
		items = append(items, map[string]any{"id": i, "name": "item #" + itoa(i)})
	}
	return items
}

func itoa(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}

// num converts a decoded JSON number for comparisons.
func num(v any) int {
	f, _ := v.(float64)
	return int(f)
}

// decodeRequest decodes the JSON request body into v.
func decodeRequest(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
