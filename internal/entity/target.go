package entity

import (
	"fmt"
	"strconv"
)

// minGiftID is the smallest plausible gift type identifier. Real identifiers
// are long numeric ids; anything shorter is a typo or a parsing artifact.
const minGiftID = 1_000_000_000

// ValidateGiftID parses and validates a gift type identifier.
func ValidateGiftID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("gift id %q is not numeric", raw)
	}
	if id < minGiftID {
		return 0, fmt.Errorf("gift id %d is too short to be a real identifier", id)
	}
	return id, nil
}
