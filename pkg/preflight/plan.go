package preflight

// Plan selects the checks Run performs.
type Plan struct {
	// TargetUsable verifies that an existing target is a directory and that
	// the target is not a filesystem root.
	TargetUsable bool
	// ParentWritable verifies, for a new environment, that the directory the
	// creation tool will create the target in can be written to.
	ParentWritable bool
	// EnsureParentExists creates the parent of a new environment first.
	EnsureParentExists bool
	// SubprojectsInstallable verifies, when the install step will run, that
	// every subproject is a directory with a setup.py.
	SubprojectsInstallable bool

	DryRun bool
}

// State is what the orchestrator found out about the target before the checks ran.
type State struct {
	Exists  bool
	Install bool
}
