package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateTransactionID mints a server-side transaction ID for requests that
// arrive without one. Client-provided IDs always win.
func GenerateTransactionID() string {
	return fmt.Sprintf("txn_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}
