package main

import (
	"github.com/scibuild/scibuild/cmd/scibuild/internal"

	_ "github.com/scibuild/scibuild/recipes"
)

func main() {
	internal.Execute()
}
