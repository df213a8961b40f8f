package main

import (
	"github.com/ValentinKolb/liveQ/cmd"
)

func main() {
	cmd.Execute()
}
