// Package main provides the server-ctl CLI tool for driving a local server.
package main

import (
	"os"

	"github.com/sirosfoundation/go-local-server/cmd/server-ctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
