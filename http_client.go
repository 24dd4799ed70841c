package main

import (
	"net/http"
	"time"
)

func newBackendHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}
