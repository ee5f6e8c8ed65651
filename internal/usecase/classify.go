package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"

	"guardians/internal/domain"
)

// classifyRemote guarantees that an error leaving the registry carries one
// of the taxonomy sentinels.
func classifyRemote(err error) error {
	if err == nil || domain.IsClassified(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTransientNetwork, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", domain.ErrTransientNetwork, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrRejected, err)
}
