package eventstream

import "errors"

// ErrNilMessage indicates a nil message was provided to a publisher.
var ErrNilMessage = errors.New("nil stream message")
