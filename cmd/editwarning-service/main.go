// cmd/editwarning-service/main.go
package main

import (
	"os"

	"github.com/avivl/editwarning/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
