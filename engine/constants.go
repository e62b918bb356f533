package engine

const (
	// Published whenever a fanpage row changes: connected, disconnected or
	// credential rotated. The payload is a FanpageChanged.
	TopicFanpageChanged = "fanpage.changed"

	// Seconds to wait before restarting a module that returned an error.
	GracefulRetryDelay = 3
)
