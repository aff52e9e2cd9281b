package repository

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
)

// classifyError turns connectivity failures into StoreUnavailableError and
// returns every other error unchanged.
func classifyError(store string, err error) error {
	if err == nil {
		return nil
	}

	if isUnavailable(err) {
		return critiqueerrors.NewStoreUnavailableError(store, err)
	}

	return err
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// pgxpool reports a closed pool with an unexported error value.
	return strings.Contains(err.Error(), "closed pool")
}
