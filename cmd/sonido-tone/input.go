package main

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
)

// parseNumbers converts positional arguments to float64 values
func parseNumbers(args []string) ([]float64, error) {
	values := make([]float64, len(args))
	for i, arg := range args {
		v, err := cast.ToFloat64E(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d (%q) is not a number", common.ErrInvalidParameter, i+1, arg)
		}
		values[i] = v
	}
	return values, nil
}
