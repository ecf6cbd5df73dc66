package ir

// Config represents the top-level declaration.
type Config struct {
	Containers []*Resource `pkl:"containers" yaml:"containers" json:"containers"`
}
