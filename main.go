// Package main is the entry point for the animexin-ctl application.
package main

import (
	"github.com/Atik203/animexin-player-controller-extension/cmd"
	"github.com/Atik203/animexin-player-controller-extension/config"
	"github.com/Atik203/animexin-player-controller-extension/internal/cache"
	"github.com/Atik203/animexin-player-controller-extension/log"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	// Prune expired page cache entries in the background.
	go cache.CollectGarbage()

	cmd.Execute()
}
