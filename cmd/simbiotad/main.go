// Package main provides the entry point for the simbiotad on-access
// scanning daemon.
package main

import "os"

func main() {
	os.Exit(Execute())
}
