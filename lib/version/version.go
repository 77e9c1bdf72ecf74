package version

import (
	"fmt"
)

const Name = "slimweb"

var Major = "0"

var Minor = "1"

var Patch = "0"

// Git is set at link time with -ldflags "-X"
var Git string

// Version gets the client version string we advertise to peers
func Version() string {
	v := fmt.Sprintf("%s-%s.%s.%s", Name, Major, Minor, Patch)
	if len(Git) > 0 {
		v += fmt.Sprintf("-%s", Git)
	}
	return v
}
