package engine

import "log/slog"

// DefaultMaxToolRounds bounds tool rounds when Config leaves it unset.
const DefaultMaxToolRounds = 5

// Config holds configuration for the engine.
type Config struct {
	// MaxToolRounds is the number of tool rounds a run may dispatch. The
	// provider is called at most MaxToolRounds+1 times. Zero or negative
	// means DefaultMaxToolRounds.
	MaxToolRounds int

	// StructuredOutput asks providers that support it for JSON replies
	// following normalize.ResponseSchema.
	StructuredOutput bool

	// DefaultSearchLimit is used when the settings carry no search limit.
	DefaultSearchLimit int

	// Logger receives run-level warnings. Nil means slog.Default().
	Logger *slog.Logger
}

func (c Config) maxRounds() int {
	if c.MaxToolRounds <= 0 {
		return DefaultMaxToolRounds
	}
	return c.MaxToolRounds
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
