package globalplatform

import "github.com/ethereum/go-ethereum/log"

// logger traces raw and wrapped APDU bytes at Debug level and warnings
// during SD selection. It never influences control flow.
var logger = log.New("package", "gpscp/globalplatform")
