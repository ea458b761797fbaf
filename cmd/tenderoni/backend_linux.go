//go:build linux

package main

import (
	"log/slog"

	"github.com/tenderoni/tenderoni-go/pkg/radio/linuxsta"
)

func newLinuxStack(iface string, logger *slog.Logger) (closableStack, error) {
	return linuxsta.New(linuxsta.Config{
		Interface: iface,
		Logger:    logger.With("component", "linuxsta"),
	}), nil
}
