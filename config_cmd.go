package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# speech engine: piper, gtts or mock
engine: "piper"
# engine to switch to when the first one is missing or keeps failing
fallback: ""
# speech rate between 0.5 and 2.0
rate: 1.0
# read every speaker with one voice (ID or name); empty gives each speaker their own
voice: ""
# keep reading as the transcript grows on disk
follow: false
# remove markdown syntax before speaking
strip_markdown: false
# mouse support
mouse: false

# where the parts of a message live in the transcript markup
selectors:
  list_item: "chat-messages-"
  username: "message-username"
  content: "message-content"
  reply: "repliedText"
  avatar_attr: "aria-hidden"
  avatar_value: "true"

# synthesized audio cache
cache:
  # defaults to the user cache directory
  # dir: "~/.cache/chatreader/audio"
  # disk size in MB
  max_size: 512
  memory_items: 256
  # zstd level, 0 stores raw audio
  compression: 3
  ttl: "168h"

piper:
  binary: "piper"
  # model: "~/piper/en_US-lessac-medium.onnx"
  # data_dir: "~/piper"
  # speakers exposed per multi-speaker model, 0 for all
  speakers: 0
  timeout: "30s"

gtts:
  binary: "gtts-cli"
  ffmpeg: "ffmpeg"
  language: "en"
  requests_per_minute: 50

audio:
  sample_rate: 22050
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the chatreader config file",
	Long:    paragraph(fmt.Sprintf("\n%s the chatreader config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("chatreader config\nchatreader config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Chatreader", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
	// A broken config file must not keep us from editing it.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
