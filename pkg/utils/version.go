// Package utils holds small helpers shared by the lettarag commands and
// storage code.
package utils

// Build metadata, set through -ldflags -X at release time.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
