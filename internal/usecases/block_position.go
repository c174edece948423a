package usecases

import (
	"fmt"
	"regexp"
	"strconv"

	"nexus.backend/internal/domain/entities"
	domainerrors "nexus.backend/internal/domain/errors"
)

var blockPosPattern = regexp.MustCompile(`BlockPos\{x=(-?\d+), y=(-?\d+), z=(-?\d+)\}`)

// ParseBlockPosition reads the game server's "BlockPos{x=1, y=2, z=3}" rendering
func ParseBlockPosition(s string) (entities.BlockPosition, error) {
	m := blockPosPattern.FindStringSubmatch(s)
	if m == nil {
		return entities.BlockPosition{}, fmt.Errorf("%w: position %q", domainerrors.ErrInvalidInput, s)
	}

	var coords [3]int
	for i := range coords {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return entities.BlockPosition{}, fmt.Errorf("%w: position %q: %v", domainerrors.ErrInvalidInput, s, err)
		}
		coords[i] = v
	}
	return entities.BlockPosition{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}
