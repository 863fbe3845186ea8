package main

import "github.com/xcbolt/iosrun/internal/cli"

func main() {
	cli.Execute()
}
