package app

type StatusKind string

const (
	StatusOK       StatusKind = "ok"
	StatusModified StatusKind = "modified"
	StatusMissing  StatusKind = "missing"
)

type ProgressReporter interface {
	Increment(label string)
	Done()
}

type Reporter interface {
	Info(message string)
	Step(target, detail string)
	Tool(name, detail string)
	Failure(target string, err error)
	Tools(target string, names []string)
	Saved(target, path string)
	Status(kind StatusKind, target, output string)
	StatusSummary(ok, modified, missing int)
	CleanRemoved(path string)
	CleanMissing(path string)
	CleanSummary(removed, missing, lockRemoved int)
	Progress(label string, total int) ProgressReporter
}

type noopReporter struct{}

func (n noopReporter) Info(string)                           {}
func (n noopReporter) Step(string, string)                   {}
func (n noopReporter) Tool(string, string)                   {}
func (n noopReporter) Failure(string, error)                 {}
func (n noopReporter) Tools(string, []string)                {}
func (n noopReporter) Saved(string, string)                  {}
func (n noopReporter) Status(StatusKind, string, string)     {}
func (n noopReporter) StatusSummary(int, int, int)           {}
func (n noopReporter) CleanRemoved(string)                   {}
func (n noopReporter) CleanMissing(string)                   {}
func (n noopReporter) CleanSummary(int, int, int)            {}
func (n noopReporter) Progress(string, int) ProgressReporter { return noopProgress{} }

type noopProgress struct{}

func (n noopProgress) Increment(string) {}
func (n noopProgress) Done()            {}

func ensureReporter(reporter Reporter) Reporter {
	if reporter == nil {
		return noopReporter{}
	}
	return reporter
}

// targetSteps forwards fetch progress to the reporter under a target name.
type targetSteps struct {
	reporter Reporter
	target   string
}

func (s targetSteps) Step(detail string) {
	s.reporter.Step(s.target, detail)
}
