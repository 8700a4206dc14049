package checkpointer

import (
	"fmt"
	"time"
)

// FileTimer returns a function which will append to a filename the
// time at which it is called, in UTC and with nanosecond precision
func FileTimer(filename, extension string) func() string {
	return func() string {
		return fmt.Sprintf("%v-%v%v", filename,
			time.Now().UTC().Format("20060102T150405.000000000"), extension)
	}
}
