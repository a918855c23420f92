package main

import (
	"log"

	"github.com/bookmarkeddit/bookmarkeddit/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ bookmarkedditd failed to start: %v", err)
	}
}
