package shell

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/aligator/fatnav"
	"github.com/aligator/fatnav/checkpoint"
)

// Config configures a Session. The mapstructure tags match the command line flags.
type Config struct {
	// MaxDepth limits how deep cd can go.
	MaxDepth int `mapstructure:"max-depth"`
	// Prompt is shown in front of the current path.
	Prompt string `mapstructure:"prompt"`
	// SkipChecks opens volumes with broken boot sector signatures.
	SkipChecks bool `mapstructure:"skip-checks"`
}

// DefaultConfig returns the configuration used if nothing else is set.
func DefaultConfig() Config {
	return Config{
		MaxDepth: DefaultMaxDepth,
		Prompt:   "fatnav",
	}
}

// Session owns an opened image and executes commands on it.
type Session struct {
	*Dispatcher

	image  afero.File
	volume *fatnav.Fs
	config Config
	closed bool
}

// Open opens the image file name of afs and decodes its boot sector.
// The image is closed again if it is no valid FAT32 volume.
func Open(afs afero.Fs, name string, config Config) (*Session, error) {
	image, err := afs.Open(name)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	open := fatnav.New
	if config.SkipChecks {
		open = fatnav.NewSkipChecks
	}

	volume, err := open(image)
	if err != nil {
		return nil, multierr.Append(err, image.Close())
	}

	log.WithFields(log.Fields{
		"image": name,
		"label": volume.Label(),
	}).Debug("Opened session")

	return &Session{
		Dispatcher: NewDispatcher(volume, config.MaxDepth),
		image:      image,
		volume:     volume,
		config:     config,
	}, nil
}

// Volume returns the opened volume.
func (s *Session) Volume() *fatnav.Fs {
	return s.volume
}

// Prompt renders the configured prompt with the current path, like "fatnav:/DOCS> ".
func (s *Session) Prompt() string {
	if s.config.Prompt == "" {
		return s.Context().PathString() + "> "
	}
	return fmt.Sprintf("%s:%s> ", s.config.Prompt, s.Context().PathString())
}

// Execute runs a single command line. After the exit command the image is closed.
func (s *Session) Execute(line string) Response {
	response := s.Dispatcher.Execute(line)
	if response.Exit {
		if err := s.Close(); err != nil {
			response.Err = err
		}
	}
	return response
}

// Close closes all open files and the image. Calling it again does nothing.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.files.CloseAll()
	return checkpoint.From(s.image.Close())
}
