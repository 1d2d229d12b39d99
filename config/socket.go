package config

import "time"

// SocketConfig holds WebSocket server configuration.
type SocketConfig struct {
	MaxConnections  int           `mapstructure:"max_connections" validate:"gte=0"`
	PingInterval    time.Duration `mapstructure:"ping_interval" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ReadBufferSize  int           `mapstructure:"read_buffer" validate:"gt=0"`
	WriteBufferSize int           `mapstructure:"write_buffer" validate:"gt=0"`
	ReadLimit       int64         `mapstructure:"read_limit" validate:"gt=0"`
	SendBuffer      int           `mapstructure:"send_buffer" validate:"gt=0"`
}

// DefaultSocketConfig returns the default WebSocket configuration.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		MaxConnections:  1000,
		PingInterval:    30 * time.Second,
		WriteTimeout:    10 * time.Second,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		ReadLimit:       32768,
		SendBuffer:      64,
	}
}

// PongWait is how long a connection may stay silent before it is dropped.
// Zero when pings are disabled.
func (s SocketConfig) PongWait() time.Duration {
	if s.PingInterval <= 0 {
		return 0
	}
	return s.PingInterval * 10 / 9
}
