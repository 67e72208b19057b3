package main

import (
	"errors"
	"os"

	flags "github.com/goliatone/go-flagtree"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, flags.ErrHelpRequested) {
			os.Exit(0)
		}
		log.WithError(err).Error("flagtree failed")
		os.Exit(1)
	}
}
