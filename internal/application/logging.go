package application

import (
	"log/slog"
	"os"

	"thirdcoast.systems/scribe/internal/config"
)

// SetupLogging installs a JSON slog handler at LOG_LEVEL and returns a logger tagged
// with the binary's component name.
func SetupLogging(conf config.Config, component string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: conf.SlogLevel()})
	slog.SetDefault(slog.New(h))
	return slog.Default().With("component", component)
}
