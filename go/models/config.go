package models

import (
	"io"
	"os"
)

type Config struct {
	Color   bool
	Verbose bool

	// diagnostic output, defaults to stderr
	Output io.Writer
}

func (c *Config) Init() *Config {
	if c == nil {
		c = &Config{}
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
	return c
}
