// Package serializer converts HTTP responses to and from their stored
// byte form. Responses are stored in HTTP/1.1 wire format.
package serializer

import (
	"bufio"
	"bytes"
	"net/http"
)

// ResponseToBytes serializes a response for storage.
// Response bodies are single-read streams, so serializing consumes the
// body; it is restored on the passed-in response afterwards, which makes
// this function behave like a clone-before-store. The original response
// stays usable by the caller.
func ResponseToBytes(res *http.Response) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	bts := buf.Bytes()
	// set response body back from the serialized copy
	clone, err := BytesToResponse(bts)
	if err != nil {
		return nil, err
	}
	res.Body = clone.Body
	return bts, nil
}

// BytesToResponse deserializes a stored response.
// The returned response has a readable body and no associated request.
func BytesToResponse(b []byte) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
}
