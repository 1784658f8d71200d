package beeswax

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
)

// ErrMissingCredentials is returned by New when the email or password is absent.
var ErrMissingCredentials = errors.New("beeswax: must provide creds with email and password")

// maxErrorBody caps how much of a response body is echoed in Error strings.
const maxErrorBody = 512

// StatusError is a non-2xx response from the API. Only the status and body
// bytes are retained, never the *http.Response itself.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("beeswax: %s %s returned %d: %s", e.Method, e.URL, e.StatusCode, clip(e.Body))
}

// ResponseBody returns the raw body of the failed response.
func (e *StatusError) ResponseBody() []byte { return e.Body }

// FailureError is a 2xx response whose document carries success=false.
type FailureError struct {
	Body []byte
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("beeswax: request unsuccessful: %s", clip(e.Body))
}

// ResponseBody returns the full response document for diagnostics.
func (e *FailureError) ResponseBody() []byte { return e.Body }

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func statusError(req *http.Request, status int, body []byte) error {
	return &StatusError{
		StatusCode: status,
		Method:     req.Method,
		URL:        req.URL.String(),
		Body:       body,
	}
}

func clip(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}

//
// Not-found classification. Beeswax reports a missing object on the strict
// mutation endpoints as a validation error whose first payload entry lists
// messages such as "Could not load object 123 to update".
//

type mutation string

const (
	actionUpdate mutation = "update"
	actionDelete mutation = "delete"
)

var notFoundPatterns = map[mutation]*regexp.Regexp{
	actionUpdate: regexp.MustCompile(`Could not load object.*to update`),
	actionDelete: regexp.MustCompile(`Could not load object.*to delete`),
}

type bodyCarrier interface {
	ResponseBody() []byte
}

// isNotFound reports whether err is the API's "object missing" failure for action.
func isNotFound(err error, action mutation) bool {
	var bc bodyCarrier
	if !errors.As(err, &bc) {
		return false
	}
	var doc struct {
		Payload []struct {
			Message []string `json:"message"`
		} `json:"payload"`
	}
	if json.Unmarshal(bc.ResponseBody(), &doc) != nil || len(doc.Payload) == 0 {
		return false
	}
	re := notFoundPatterns[action]
	for _, msg := range doc.Payload[0].Message {
		if re.MatchString(msg) {
			return true
		}
	}
	return false
}
