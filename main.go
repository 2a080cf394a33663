package main

import (
	"github.com/shunt-cd/shunt/cmd/root"
)

func main() {
	root.Execute()
}
