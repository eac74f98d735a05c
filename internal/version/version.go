// ABOUTME: Version and product identification constants
// ABOUTME: Reported to servers in the client/hello device info
package version

const (
	Version      = "0.1.0"
	Product      = "Opaline Player"
	Manufacturer = "Opaline"
)
