// Package main provides portalctl, the operator CLI of the support portal:
// schema migrations, built-in roles and the first administrator.
//
// Import Path: supportportal.io/portal/cmd/portalctl
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "portalctl: %v\n", err)
		os.Exit(1)
	}
}
