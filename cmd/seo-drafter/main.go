package main

import (
	"github.com/pon-1234/seo-drafter-gcp/cmd/handlers"
	"github.com/pon-1234/seo-drafter-gcp/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
