package main

import "github.com/oshokin/alarm-engine/cmd/alarm-engine/cmd"

func main() {
	cmd.Execute()
}
