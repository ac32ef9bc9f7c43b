package training

// Config holds learner configuration.
type Config struct {
	Epochs      int    `json:"epochs"`
	LossName    string `json:"lossName"`
	TrackMemory bool   `json:"trackMemory"`
}

// DefaultConfig returns sensible defaults for training.
func DefaultConfig() Config {
	return Config{
		Epochs:   1,
		LossName: DefaultLossName,
	}
}
