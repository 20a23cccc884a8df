package fork

import "path/filepath"

// Directory and file name constants for the on-device fork layout.
const (
	ForksDirName     = "forks"
	WorkingCopyName  = "openpilot"
	ParamsSnapName   = "params"
	PointerFileName  = "current_fork.txt"
	JournalFileName  = "swap-journal.json"
	CloneStagingName = ".clone-staging"
)

// Paths constructs every filesystem location the manager touches, relative
// to a data root. The live working copy and live params directory are fixed
// siblings of the forks root on the device.
type Paths struct {
	dataRoot   string
	livePath   string
	paramsPath string
}

// NewPaths creates a path builder. livePath and paramsPath may be empty, in
// which case the conventional locations under dataRoot are used.
func NewPaths(dataRoot, livePath, paramsPath string) *Paths {
	if livePath == "" {
		livePath = filepath.Join(dataRoot, WorkingCopyName)
	}
	if paramsPath == "" {
		paramsPath = filepath.Join(dataRoot, ParamsSnapName)
	}
	return &Paths{dataRoot: dataRoot, livePath: livePath, paramsPath: paramsPath}
}

// DataRoot returns the root directory that holds the forks tree.
func (p *Paths) DataRoot() string { return p.dataRoot }

// LivePath returns the live working-copy directory the device runs from.
func (p *Paths) LivePath() string { return p.livePath }

// LiveParamsPath returns the live configuration directory.
func (p *Paths) LiveParamsPath() string { return p.paramsPath }

// ForksRoot returns the directory containing one archive per fork.
func (p *Paths) ForksRoot() string {
	return filepath.Join(p.dataRoot, ForksDirName)
}

// PointerPath returns the one-line file recording the active fork name.
func (p *Paths) PointerPath() string {
	return filepath.Join(p.ForksRoot(), PointerFileName)
}

// JournalPath returns the location of the swap journal.
func (p *Paths) JournalPath() string {
	return filepath.Join(p.ForksRoot(), JournalFileName)
}

// ArchiveDir returns the archive directory for a named fork.
func (p *Paths) ArchiveDir(name string) string {
	return filepath.Join(p.ForksRoot(), name)
}

// ArchivedCopy returns the archived working-copy snapshot path of a fork.
func (p *Paths) ArchivedCopy(name string) string {
	return filepath.Join(p.ArchiveDir(name), WorkingCopyName)
}

// ArchivedParams returns the archived params snapshot path of a fork.
func (p *Paths) ArchivedParams(name string) string {
	return filepath.Join(p.ArchiveDir(name), ParamsSnapName)
}

// CloneStagingDir returns the temporary directory clones are staged in
// before being moved into place. Cleanup removes it unconditionally.
func (p *Paths) CloneStagingDir() string {
	return filepath.Join(p.ForksRoot(), CloneStagingName)
}
