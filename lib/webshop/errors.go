package webshop

import "fmt"

// TransportError means the host could not be reached at all: dns
// failure, connect timeout, dropped connection. No response exists.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError means a response arrived but broke a structural
// contract: wrong status where one was asserted, a missing page
// marker, an envelope that doesn't decode.
type ProtocolError struct {
	URL    string
	Status int
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.URL, e.Reason, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.URL, e.Reason)
}
