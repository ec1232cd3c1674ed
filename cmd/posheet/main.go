package main

import (
	"posheet/cmd/posheet/commands"
	"posheet/pkg/serviceutil"

	"github.com/joho/godotenv"
)

func main() {
	// a missing .env is fine, variables may come from the real environment
	_ = godotenv.Load()
	commands.ExecuteContext(serviceutil.SignalContext())
}
