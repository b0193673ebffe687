package engine

import "errors"

var (
	// ErrUnknownDirection is returned when an input string names no direction.
	ErrUnknownDirection = errors.New("unknown direction")

	// ErrEpisodeNotOver is returned by Restart while the episode is still playing.
	ErrEpisodeNotOver = errors.New("episode is not over")

	// ErrEpisodeOver is returned when input is submitted after the episode ended.
	ErrEpisodeOver = errors.New("episode is over")

	// ErrInvalidConfig wraps every level configuration validation failure.
	ErrInvalidConfig = errors.New("invalid level config")
)
