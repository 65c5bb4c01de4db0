package main

import (
	_ "time/tzdata"

	"github.com/frahmantamala/order-assistant/cmd"
)

func main() {
	cmd.Execute()
}
