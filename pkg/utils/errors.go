package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrConfigValidation = errors.New("configuration validation error")
	ErrURLBlocked       = errors.New("URL rejected by safety validation")
	ErrEngineHTTP       = errors.New("crawl engine HTTP error")        // Wraps non-2xx engine responses
	ErrEngineTransport  = errors.New("crawl engine transport failure") // Connection drop, timeout, body read
	ErrStreamClosed     = errors.New("event stream closed")
	ErrTaskNotFound     = errors.New("crawl task not found")
	ErrDatabase         = errors.New("database error") // Wraps badger errors
	ErrDuplicateContent = errors.New("duplicate content hash")
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrTooManyCrawls    = errors.New("concurrent crawl limit reached")
)

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrURLBlocked):
		return "Policy_URLBlocked"
	case errors.Is(err, ErrEngineHTTP):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404") {
			return "Engine_HTTP_404"
		}
		if strings.Contains(errMsg, " 429") {
			return "Engine_HTTP_429"
		}
		if strings.Contains(errMsg, " 5") {
			return "Engine_HTTP_5xx"
		}
		return "Engine_HTTP_Other"
	case errors.Is(err, ErrEngineTransport):
		return "Engine_Transport"
	case errors.Is(err, ErrStreamClosed):
		return "Engine_StreamClosed"
	case errors.Is(err, ErrTaskNotFound):
		return "Task_NotFound"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrDuplicateContent):
		return "Content_Duplicate"
	case errors.Is(err, ErrUnsupportedFile):
		return "Content_UnsupportedFile"
	case errors.Is(err, ErrTooManyCrawls):
		return "Resource_CrawlLimit"
	}

	// Context errors
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	// Network errors not wrapped by custom sentinels
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "Network_Timeout"
		}
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}
	if strings.Contains(lowerErrMsg, "broken pipe") {
		return "Network_BrokenPipe"
	}

	return "Unknown"
}
