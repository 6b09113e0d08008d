//go:build !opus

package audioconv

import (
	"errors"
	"io"
)

func decodeOggOpus(io.ReadSeeker) ([]int16, int, int, error) {
	return nil, 0, 0, errors.New("ogg/opus support requires building with -tags opus")
}
