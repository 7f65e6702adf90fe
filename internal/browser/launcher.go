package browser

import (
	"context"

	"github.com/rotisserie/eris"
)

// Engine names accepted by NewLauncher.
const (
	EngineChrome = "chrome"
	EngineStatic = "static"
)

// NewLauncher returns the Launcher for the named engine.
func NewLauncher(engine string, chrome ChromeOptions, static StaticOptions) (Launcher, error) {
	switch engine {
	case EngineChrome, "":
		return func(ctx context.Context) (Browser, error) {
			return LaunchChrome(ctx, chrome)
		}, nil
	case EngineStatic:
		return func(context.Context) (Browser, error) {
			return NewStatic(static), nil
		}, nil
	default:
		return nil, eris.Errorf("unknown browser engine: %q (valid: chrome, static)", engine)
	}
}
