package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tomatool/uitest/command"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	if err := command.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, command.RenderError(err))
		os.Exit(1)
	}
}
