package content

import (
	"fmt"

	"github.com/WebFirstLanguage/brisby/pkg/brisbyerr"
)

func errInvalidHashHex(s string) error {
	return brisbyerr.InvalidData(fmt.Sprintf("not valid hex: %q", s))
}

func errInvalidHashLength(n int) error {
	return brisbyerr.InvalidData(fmt.Sprintf("content hash must be 32 bytes, got %d", n))
}
