package parser

import (
	"fmt"
	"strings"
)

// Kind classifies a ParseError.
type Kind string

// Parse failure kinds.
const (
	KindHTTP      Kind = "HttpError"
	KindTransport Kind = "TransportError"
	KindMalformed Kind = "MalformedResponse"
)

// maxExcerpt bounds the response body kept on an HTTP error.
const maxExcerpt = 512

// ParseError is returned for every failed call to the parsing endpoint.
type ParseError struct {
	Kind        Kind   `json:"kind"`
	Status      int    `json:"status,omitempty"`
	BodyExcerpt string `json:"bodyExcerpt,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case KindHTTP:
		if e.BodyExcerpt == "" {
			return fmt.Sprintf("parser endpoint returned HTTP %d", e.Status)
		}
		return fmt.Sprintf("parser endpoint returned HTTP %d: %s", e.Status, e.BodyExcerpt)
	case KindTransport:
		return "parser endpoint unreachable: " + e.Detail
	default:
		return "parser response malformed: " + e.Detail
	}
}

func excerpt(body []byte) string {
	if len(body) > maxExcerpt {
		body = body[:maxExcerpt]
	}
	return strings.ToValidUTF8(string(body), "")
}
