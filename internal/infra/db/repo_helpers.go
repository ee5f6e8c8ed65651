package db

import (
	"errors"
	"fmt"

	"guardians/internal/domain"
)

var errDBUnavailable = fmt.Errorf("%w: db unavailable", domain.ErrNotReady)

func parseKey(s string) (domain.PublicKey, error) {
	if s == "" {
		return domain.PublicKey{}, errors.New("empty key in stored row")
	}
	return domain.ParsePublicKey(s)
}
