package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"smart-task-ingest-go/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		logrus.Errorf("application error: %v", err)
		os.Exit(1)
	}
}
