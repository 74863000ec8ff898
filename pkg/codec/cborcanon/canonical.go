// Package cborcanon provides canonical CBOR encoding helpers for the wire
// protocol: RFC 7049 canonical (length-first map key order) encoding so
// two encoders given the same value always produce the same bytes.
package cborcanon

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CanonicalMode is a CBOR encoding mode with canonical settings:
// deterministic key order, shortest-form floats, no indefinite lengths.
var CanonicalMode cbor.EncMode

func init() {
	var err error
	CanonicalMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create canonical CBOR mode: %v", err))
	}
}

// Marshal encodes v into canonical CBOR format
func Marshal(v interface{}) ([]byte, error) {
	return CanonicalMode.Marshal(v)
}

// Unmarshal decodes canonical CBOR data into v
func Unmarshal(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}
