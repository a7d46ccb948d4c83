package tasktree

// State is the compilation state of a Record.
type State int

const (
	// Pending records still need compiling.
	Pending State = iota
	// Resolved records have a registered unit.
	Resolved
	// Failed records could not be compiled; Err says why.
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record is the normalized form of one task file.
type Record struct {
	ID   string
	File string
	// Cwd is the task working directory.
	Cwd  string
	Help string
	// Spec is the execution list.
	Spec   []Step
	Watch  *WatchSpec
	Inject map[string]any

	State State
	Err   error
	Unit  Unit
}

func (r *Record) resolve(u Unit) {
	r.State = Resolved
	r.Unit = u
	r.Err = nil
}

func (r *Record) fail(err error) {
	r.State = Failed
	r.Unit = nil
	r.Err = err
}
