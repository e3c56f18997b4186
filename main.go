package main

import (
	"log"

	"eventhub/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
