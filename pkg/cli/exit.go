package cli

import (
	"errors"

	"github.com/woliveiras/sdprep/pkg/provision"
)

// ExitCode maps the error returned by RunSdprep or RunMkdtb to the process
// exit code: 0 for success and user abort, 1 for a missing root
// privilege, -1 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, provision.ErrAborted):
		return 0
	case errors.Is(err, provision.ErrNotRoot):
		return 1
	default:
		return -1
	}
}
