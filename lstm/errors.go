package lstm

import (
	"errors"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/codec"
)

// Encoding and configuration errors come from the codec so a caller can
// test either package's sentinel with errors.Is.
var (
	ErrUnknownSymbol        = codec.ErrUnknownSymbol
	ErrIndexOutOfRange      = codec.ErrIndexOutOfRange
	ErrInvalidConfiguration = codec.ErrInvalidConfiguration
	ErrNumericDivergence    = errors.New("numeric divergence")
)
