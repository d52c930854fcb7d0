// Command ckptctl issues checkpoint operations on job steps.
//
//	ckptctl able 42.0
//	ckptctl create 42.0 --max-wait 30s
//	ckptctl complete 42.0 --begin-time 1700000000 --error-code 7 --error-msg "disk full"
//	ckptctl error 42.0
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
