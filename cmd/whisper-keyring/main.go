package main

import (
	"os"

	"whisper2/go-keyring/cmd/whisper-keyring/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
