package version

import "fmt"

// Version is overridable at build time:
// go build -ldflags "-X github.com/standardbeagle/codeix/internal/version.Version=1.2.3"
var Version = "0.1.0"

// FullInfo returns the version string with the on-disk format version.
func FullInfo() string {
	return fmt.Sprintf("codeix %s (index format 1.0)", Version)
}
