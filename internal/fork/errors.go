package fork

import "errors"

var (
	// ErrNameEmpty indicates an empty or whitespace-only fork name.
	ErrNameEmpty = errors.New("fork name cannot be empty")
	// ErrNameInvalid indicates a fork name outside the allowed alphabet.
	ErrNameInvalid = errors.New("fork name may only contain letters, digits, '_' and '-'")
	// ErrURLInvalid indicates a repository URL that does not match the
	// required https://<host>/<owner>/<repo>.git form.
	ErrURLInvalid = errors.New("repository URL must match https://<host>/<owner>/<repo>.git")
	// ErrForkNotFound indicates the named fork has no archive directory.
	ErrForkNotFound = errors.New("fork does not exist")
	// ErrNoSnapshot indicates the fork's archive holds no working-copy snapshot.
	ErrNoSnapshot = errors.New("fork has no archived working copy")
	// ErrNoActiveFork indicates no fork is currently recorded as active.
	ErrNoActiveFork = errors.New("no active fork recorded")
	// ErrPointerMismatch indicates the pointer file re-read after a write
	// did not contain the value that was written.
	ErrPointerMismatch = errors.New("active fork pointer verification failed")
)
