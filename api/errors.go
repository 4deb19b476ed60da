package api

import (
	"fmt"
	"io/ioutil"
	"net/http"
)

// StatusError is returned when the API responds with a non-2xx status code.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func unwrapError(resp *http.Response) error {
	errorResp, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: string(errorResp)}
}
