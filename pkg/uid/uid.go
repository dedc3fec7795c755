package uid

import (
	"strings"

	"github.com/google/uuid"
)

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// NewOrderID generates an externally presentable order token, e.g. "ORD3FA85F64".
// Short enough to retype from a chat message, unique enough for a single store.
func NewOrderID() string {
	return "ORD" + strings.ToUpper(uuid.New().String()[:8])
}
