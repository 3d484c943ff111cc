package common

import (
	"github.com/google/uuid"
)

// NewRequestID generates a fetch request id of the form req_<uuid>
func NewRequestID() string {
	return "req_" + uuid.New().String()
}
