package cli

import "errors"

// ErrPromptCancelled indicates the user aborted an interactive prompt.
var ErrPromptCancelled = errors.New("prompt cancelled")
