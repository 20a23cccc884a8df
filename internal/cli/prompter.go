package cli

// Prompter abstracts the interactive console so commands can be exercised
// with scripted input in tests.
type Prompter interface {
	Select(label string, items []string, defaultValue string) (int, string, error)
	Prompt(label string) (string, error)
	Confirm(label string, defaultYes bool) (bool, error)
}
