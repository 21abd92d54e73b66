package output

import "time"

type RelayMetrics interface {
	StreamStarted()
	ChunkPublished()
	StreamFinished(result string, elapsed time.Duration)
}

type NopRelayMetrics struct{}

func (NopRelayMetrics) StreamStarted() {}
func (NopRelayMetrics) ChunkPublished() {}
func (NopRelayMetrics) StreamFinished(string, time.Duration) {}
