package main

import "github.com/frahmantamala/travel-approval/cmd"

func main() {
	cmd.Execute()
}
