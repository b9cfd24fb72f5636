package main

import "github.com/vibast-solutions/ms-go-channel-sync/cmd"

func main() {
	cmd.Execute()
}
