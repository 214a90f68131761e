package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT,required=true"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,required=true"`
	PingInterval         time.Duration `env:"PING_INTERVAL,required=true"`

	SearchLimit     int      `env:"SEARCH_LIMIT,required=true"`
	CensoredWords   []string `env:"CENSORED_WORDS"`
	CharReplacement string   `env:"CHARACTER_REPLACEMENT,required=true"`

	DebugPort int `env:"DEBUG_PORT"`
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
