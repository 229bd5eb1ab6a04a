package memory

import (
	"fmt"

	"vehicle_parking/internal/repository"
)

func duplicate(detail string) error {
	return fmt.Errorf("%w: %s", repository.ErrDuplicateEntry, detail)
}

func conflict(detail string) error {
	return fmt.Errorf("%w: %s", repository.ErrConflict, detail)
}
