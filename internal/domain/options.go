package domain

// CommonOptions contains shared options for a sync run.
type CommonOptions struct {
	Verbose bool
	DryRun  bool
	// Limit caps the number of catalog items processed (0 = unlimited)
	Limit int
}

// DefaultCommonOptions returns CommonOptions with default values.
func DefaultCommonOptions() CommonOptions {
	return CommonOptions{}
}
