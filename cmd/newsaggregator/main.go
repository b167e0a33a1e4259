package main

import (
	"os"

	"github.com/wpatrik14/newsaggregator/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
