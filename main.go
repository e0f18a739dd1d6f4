package main

import (
	"time"

	"github.com/cloud66-oss/ipinfo/cmd"
	"github.com/getsentry/sentry-go"
)

func main() {
	// sentry is initialized in cmd/root.go once the config is loaded
	defer sentry.Flush(2 * time.Second)

	cmd.Execute()
}
