package chain

import "time"

// nowSeconds returns the current Unix time truncated to uint32, the unit
// core.Header.Timestamp is stored in. It is a var so tests can pin the
// clock deterministically.
var nowSeconds = func() uint32 { return uint32(time.Now().Unix()) }
