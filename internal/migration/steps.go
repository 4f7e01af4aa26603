package migration

// DefaultSteps returns the engine's built-in migration chain, in ascending
// version order, for wiring a Runner with command.SetMigrationRunner.
func DefaultSteps() []Step {
	return []Step{
		BackfillRankStep{},
	}
}
