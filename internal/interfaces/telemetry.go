package interfaces

// Telemetry is a fire-and-forget event sink. The desktop shell wires a
// real exporter; the server default is a no-op.
type Telemetry interface {
	TrackEvent(name string, properties map[string]string)
	TrackException(err error)
}

// NoopTelemetry discards everything.
type NoopTelemetry struct{}

func (NoopTelemetry) TrackEvent(string, map[string]string) {}
func (NoopTelemetry) TrackException(error)                 {}
