package redisx

import (
	"fmt"
	"time"
)

const (
	// KeyLastSync holds the latest sync run of a tenant as JSON:
	// loyalinn:sync:last:{tenant_id}
	KeyLastSync = "loyalinn:sync:last:%s"
)

// TTLLastSync is how long a run stays readable after it finished.
const TTLLastSync = 7 * 24 * time.Hour

// LastSyncKey returns the [KeyLastSync] key for tenantID.
func LastSyncKey(tenantID string) string {
	return fmt.Sprintf(KeyLastSync, tenantID)
}
