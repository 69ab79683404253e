// main.go
package main

import (
	_ "time/tzdata"

	"room-booking/cmd"
)

func main() {
	cmd.Execute()
}
