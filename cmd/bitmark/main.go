package main

import (
	"log"

	"github.com/MrSnakeDoc/bitmark/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ bitmark failed to start: %v", err)
	}
}
