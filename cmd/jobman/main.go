// Command jobman is a single-host job supervisor: it runs a shell command
// in the background, detached from the controlling terminal, and records
// enough state that later invocations can inspect, tail, signal, or
// garbage-collect it.
package main

import (
	"os"

	"github.com/ryancswallace/jobman/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
