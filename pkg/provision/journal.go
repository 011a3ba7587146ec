package provision

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/woliveiras/sdprep/pkg/device"
)

// Journal results.
const (
	ResultSuccess = "SUCCESS"
	ResultFailed  = "FAILED"
	ResultAborted = "ABORTED"
)

// JournalEntry describes one finished operation.
type JournalEntry struct {
	Time      time.Time
	Device    device.Device
	Operation Operation
	Steps     []Step
	Err       error
}

// Result classifies the entry from its error.
func (e JournalEntry) Result() string {
	switch {
	case e.Err == nil:
		return ResultSuccess
	case errors.Is(e.Err, ErrAborted):
		return ResultAborted
	default:
		return ResultFailed
	}
}

// AppendJournal appends a human-readable section for e to path, creating
// the file with a header when it is new.
func AppendJournal(path string, e JournalEntry) error {
	f, openErr := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if openErr != nil {
		return openErr
	}
	defer f.Close()

	info, statErr := f.Stat()
	if statErr == nil && info.Size() == 0 {
		header := "# sdprep journal - each section describes one operation. Newest entries are at the bottom.\n\n"
		if _, err := f.WriteString(header); err != nil {
			return err
		}
	}

	when := e.Time
	if when.IsZero() {
		when = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s %s ===\n", e.Result(), when.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "device: %s\n", e.Device)
	fmt.Fprintf(&b, "operation: %s\n", e.Operation)
	fmt.Fprintf(&b, "steps:\n")
	for _, s := range e.Steps {
		fmt.Fprintf(&b, "- %s: %s\n", s.Operation, s.Description)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, "result: %s: %v\n\n", e.Result(), e.Err)
	} else {
		fmt.Fprintf(&b, "result: %s\n\n", e.Result())
	}

	_, writeErr := f.WriteString(b.String())
	return writeErr
}
