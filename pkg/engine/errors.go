package engine

import "fmt"

// SettingsMissingError is returned when no settings were ever saved.
type SettingsMissingError struct {
	Err error
}

func (e *SettingsMissingError) Error() string {
	return fmt.Sprintf("settings not found: %v", e.Err)
}

func (e *SettingsMissingError) Unwrap() error { return e.Err }

// ToolLoopExceededError is returned when the model still asks for tools
// after MaxRounds rounds were dispatched.
type ToolLoopExceededError struct {
	MaxRounds int
}

func (e *ToolLoopExceededError) Error() string {
	return fmt.Sprintf("model requested tools after %d rounds", e.MaxRounds)
}
