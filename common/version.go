package common

var (
	// Version is set during build process
	Version = "dev"

	// GitDescription is the output of `git describe`, set during build process
	GitDescription = ""
)
