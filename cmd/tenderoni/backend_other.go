//go:build !linux

package main

import (
	"errors"
	"log/slog"
)

func newLinuxStack(string, *slog.Logger) (closableStack, error) {
	return nil, errors.New("linux backend is only available on linux")
}
