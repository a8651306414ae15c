package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	AuthTimeout       time.Duration `env:"AUTH_TIMEOUT,required=true"`
	RestrictedRooms   string        `env:"RESTRICTED_ROOMS"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	BufferSize           int `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int `env:"CONNECTION_BUFFER_SIZE,required=true"`
	RoomBufferSize       int `env:"ROOM_BUFFER_SIZE,required=true"`

	HistoryPageSize    int `env:"HISTORY_PAGE_SIZE,required=true"`
	HistoryMaxPageSize int `env:"HISTORY_MAX_PAGE_SIZE,required=true"`
	ReplaySize         int `env:"REPLAY_SIZE,required=true"`
	MaxContentLength   int `env:"MAX_CONTENT_LENGTH,required=true"`

	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	LatencyThreshold     time.Duration `env:"LATENCY_THRESHOLD,required=true"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
}

// RestrictedRoomList splits the comma separated RESTRICTED_ROOMS value.
func (c Config) RestrictedRoomList() []string {
	if strings.TrimSpace(c.RestrictedRooms) == "" {
		return nil
	}
	parts := strings.Split(c.RestrictedRooms, ",")
	rooms := make([]string, 0, len(parts))
	for _, part := range parts {
		if room := strings.TrimSpace(part); room != "" {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
