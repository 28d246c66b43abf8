package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// A local .env is optional; missing files are not an error
	_ = godotenv.Load()
	Execute()
}
