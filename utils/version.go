package utils

// Version is set at build time with -ldflags "-X github.com/cloud66-oss/ipinfo/utils.Version=..."
var Version = "dev"
