package topology

// ConfigError is the single recoverable error kind raised by the loader and
// validator. It always carries a precise, one-line message.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
