// fatnav opens a FAT32 image and lets you look around in it like in a shell.
//
//  fatnav [flags] <image>
//
// Every flag can also be set in a config file or as FATNAV_<FLAG> environment variable,
// e.g. FATNAV_MAX_DEPTH=16.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/aligator/fatnav/shell"
)

var defaultLogFormatter = &log.TextFormatter{}

// infoFormatter prints Info messages without any decoration.
type infoFormatter struct {
}

func (f *infoFormatter) Format(entry *log.Entry) ([]byte, error) {
	if entry.Level == log.InfoLevel {
		return append([]byte(entry.Message), '\n'), nil
	}
	return defaultLogFormatter.Format(entry)
}

func setupLogging(level string) error {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}

	log.SetLevel(parsed)
	if parsed >= log.DebugLevel {
		log.SetFormatter(defaultLogFormatter)
	} else {
		log.SetFormatter(new(infoFormatter))
	}
	return nil
}

// loadConfig merges the flags, the environment and the optional config file, in this order.
func loadConfig(afs afero.Fs, cmd *cobra.Command, configFile string) (shell.Config, string, error) {
	v := viper.New()
	v.SetFs(afs)
	v.SetEnvPrefix("FATNAV")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return shell.Config{}, "", errors.Wrap(err, "could not bind the flags")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return shell.Config{}, "", errors.Wrapf(err, "could not read the config file %q", configFile)
		}
	}

	config := shell.DefaultConfig()
	if err := v.Unmarshal(&config); err != nil {
		return shell.Config{}, "", errors.Wrap(err, "invalid configuration")
	}
	return config, v.GetString("log-level"), nil
}

// run executes the lines of in until exit is called or in ends.
func run(session *shell.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, session.Prompt())
		if !scanner.Scan() {
			break
		}

		response := session.Execute(scanner.Text())
		if message := response.Message(); message != "" {
			fmt.Fprintln(out, message)
		}
		if response.Exit {
			// Only a failed release of the image is left in Err here.
			return errors.Wrap(response.Err, "could not close the image")
		}
	}

	fmt.Fprintln(out)
	return multierr.Append(errors.Wrap(scanner.Err(), "could not read the input"), session.Close())
}

func newCmd(afs afero.Fs, in io.Reader, out io.Writer) *cobra.Command {
	var configFile string
	defaults := shell.DefaultConfig()

	cmd := &cobra.Command{
		Use:               "fatnav [flags] <image>",
		Short:             "Navigate through a FAT32 image without modifying it",
		Args:              cobra.ExactArgs(1),
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logLevel, err := loadConfig(afs, cmd, configFile)
			if err != nil {
				return err
			}
			if err := setupLogging(logLevel); err != nil {
				return err
			}

			session, err := shell.Open(afs, args[0], config)
			if err != nil {
				return errors.Wrapf(err, "could not open %q", args[0])
			}

			log.Infof("Opened %s (%s). Type help for a list of commands.", args[0], session.Volume().Label())
			return run(session, in, out)
		},
	}

	cmd.SetOut(out)
	cmd.Flags().StringVar(&configFile, "config", "", "Config file (yaml, json or toml) with the same keys as the flags")
	cmd.Flags().String("log-level", "info", "Log level: panic, fatal, error, warn, info, debug or trace")
	cmd.Flags().Int("max-depth", defaults.MaxDepth, "Maximum depth of the current directory")
	cmd.Flags().String("prompt", defaults.Prompt, "Prompt shown in front of the current directory")
	cmd.Flags().Bool("skip-checks", false, "Open images with an invalid boot sector signature")

	return cmd
}

func main() {
	log.SetFormatter(new(infoFormatter))

	if err := newCmd(afero.NewOsFs(), os.Stdin, os.Stdout).Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
