package policy

const (
	MaxHintsPerActivity = 10
	// MinTimeForFirstHint is in seconds.
	MinTimeForFirstHint = 60
	MaxLevel            = 5
)

// Requirement gates a hint level. Either Attempts or TimeMinutes suffices;
// the Requires flags are hard preconditions.
type Requirement struct {
	Attempts              int
	TimeMinutes           int
	RequiresPrevious      bool
	RequiresComprehension bool
}

var Unlock = map[int]Requirement{
	2: {Attempts: 1, TimeMinutes: 3},
	3: {Attempts: 2, TimeMinutes: 5, RequiresPrevious: true},
	4: {Attempts: 3, TimeMinutes: 10, RequiresPrevious: true},
	5: {Attempts: 4, TimeMinutes: 15, RequiresPrevious: true, RequiresComprehension: true},
}

// effortMet reports whether attempts or elapsed time satisfy r.
func (r Requirement) effortMet(attempts, timeSpentSeconds int) (byAttempts, byTime bool) {
	return attempts >= r.Attempts, timeSpentSeconds >= r.TimeMinutes*60
}
