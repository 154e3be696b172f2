package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms"
)

// checkTimeout bounds the connection test.
const checkTimeout = 20 * time.Second

// CheckConnection initializes adapter with the given settings and lists
// reservations around now to prove the PMS is reachable. It returns the
// number of reservations seen.
func CheckConnection(ctx context.Context, adapter pms.Adapter, credentials map[string]string, endpoint string, now time.Time) (int, error) {
	if err := adapter.Init(credentials, endpoint); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start, end := model.Window(now, 1)
	items, err := adapter.PullReservations(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("listing reservations %s to %s: %w", start, end, err)
	}
	return len(items), nil
}
