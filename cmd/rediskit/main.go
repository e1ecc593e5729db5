package main

import "os"

func main() {
	if err := run(newRootCmd()); err != nil {
		os.Exit(1)
	}
}
