// Command vaultctl is the operator and client companion to the custody vault
// API: it creates identities, derives account addresses and signs requests.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
