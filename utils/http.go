package utils

import (
	"fmt"
	"io"
	"net/http"
)

// HTTPClient is the part of *http.Client the outbound clients use.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const maxErrorBody = 4 * 1024

// statusError reads a bounded prefix of a failed response body into the error.
func statusError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(body) == 0 {
		return fmt.Errorf("%s API error: %s", service, resp.Status)
	}
	return fmt.Errorf("%s API error: %s: %s", service, resp.Status, body)
}
