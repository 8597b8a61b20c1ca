package main

import (
	"github.com/joho/godotenv"

	"academybot/internal/cli"
)

func main() {
	// Provider API keys may live in a local .env file.
	_ = godotenv.Load()

	cli.Execute()
}
