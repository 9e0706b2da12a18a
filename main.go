// Package main provides the entry point for the chatreader CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chatreader/internal/audio"
	"github.com/dgnsrekt/chatreader/internal/cache"
	"github.com/dgnsrekt/chatreader/internal/dom"
	"github.com/dgnsrekt/chatreader/internal/reader"
	"github.com/dgnsrekt/chatreader/internal/source"
	"github.com/dgnsrekt/chatreader/internal/speech"
	"github.com/dgnsrekt/chatreader/internal/speech/engines"
	"github.com/dgnsrekt/chatreader/ui"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "chatreader"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	startAt    string
	cfg        Config

	rootCmd = &cobra.Command{
		Use:   "chatreader [SOURCE|DIR]",
		Short: "Read chat transcripts aloud, one voice per speaker",
		Long: paragraph(fmt.Sprintf("\nRead %s chat transcripts aloud. Each speaker gets their own voice and the message being read is highlighted.",
			keyword("HTML"))),
		Example:           paragraph("chatreader transcript.html\nchatreader --engine gtts https://example.com/chat.html\nchatreader --follow ~/exports"),
		SilenceErrors:     false,
		SilenceUsage:      true,
		TraverseChildren:  true,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: validateOptions,
		RunE:              execute,
	}
)

func validateOptions(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
		log.Debug("Using configuration file", "path", configFile)
	}
	c, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// sourceArg picks the transcript to read. With no argument a piped stdin
// wins over the working directory.
func sourceArg(args []string) (arg string, piped bool, err error) {
	if len(args) > 0 {
		return args[0], args[0] == "-", nil
	}
	yes, err := stdinIsPipe()
	if err != nil {
		return "", false, err
	}
	if yes {
		return "-", true, nil
	}
	return ".", false, nil
}

func execute(cmd *cobra.Command, args []string) error {
	arg, piped, err := sourceArg(args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	tr, err := source.Load(ctx, arg)
	if err != nil {
		return err
	}
	log.Debug("loaded transcript", "name", tr.Name, "path", tr.Path, "bytes", len(tr.Body))

	return runTUI(ctx, tr, piped)
}

// stack is the audio pipeline behind a reading session.
type stack struct {
	cache   *cache.Manager
	out     audio.Output
	speaker *speech.Speaker
}

// openStack builds cache, engine, audio output and speaker from cfg.
func openStack(cfg Config) (*stack, error) {
	cc, err := cfg.cacheConfig()
	if err != nil {
		return nil, err
	}
	cm, err := cache.NewManager(cc)
	if err != nil {
		return nil, err
	}

	engine, err := engines.New(cfg.engineConfig())
	if err != nil {
		_ = cm.Close()
		return nil, err
	}

	var out audio.Output
	if engine.Name() == engines.EngineMock {
		out = audio.NewMockOutput(1)
	} else {
		pc := audio.DefaultPlayerConfig()
		pc.SampleRate = cfg.Audio.SampleRate
		player, err := audio.NewPlayer(pc)
		if err != nil {
			_ = engine.Close()
			_ = cm.Close()
			return nil, err
		}
		out = player
	}

	return &stack{
		cache:   cm,
		out:     out,
		speaker: speech.NewSpeaker(engine, out, cm),
	}, nil
}

func (s *stack) Close() error {
	return errors.Join(s.speaker.Close(), s.out.Close(), s.cache.Close())
}

func runTUI(ctx context.Context, tr *source.Transcript, piped bool) error {
	// Read environment to get debugging stuff
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uiCfg.EnableMouse = cfg.Mouse
	uiCfg.Follow = cfg.Follow
	uiCfg.Start = dom.NodeID(startAt)
	uiCfg.InputTTY = piped

	st, err := openStack(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("unable to shut down audio", "err", err)
		}
	}()

	r, err := reader.New(ctx, tr, st.speaker, st.speaker.Voices, reader.Options{
		Selectors: cfg.Selectors,
		Transform: cfg.transform(),
		Rate:      cfg.Rate,
		Voice:     cfg.Voice,
	})
	if err != nil {
		return err
	}
	defer r.Stop()

	if _, err := ui.NewProgram(ctx, uiCfg, r).Run(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	flags.StringP("engine", "e", engines.EnginePiper, "speech engine (piper, gtts or mock)")
	flags.Float64P("rate", "r", 1.0, "speech rate between 0.5 and 2.0")
	flags.StringP("voice", "v", "", "read every speaker with this voice ID or name")
	flags.Bool("strip-markdown", false, "remove markdown syntax before speaking")
	rootCmd.Flags().BoolP("follow", "f", false, "keep reading as the transcript grows on disk")
	rootCmd.Flags().StringVarP(&startAt, "start", "s", "", "start reading at the message with this element id")
	rootCmd.Flags().BoolP("mouse", "m", false, "enable mouse support")

	// Config bindings
	_ = viper.BindPFlag("engine", flags.Lookup("engine"))
	_ = viper.BindPFlag("rate", flags.Lookup("rate"))
	_ = viper.BindPFlag("voice", flags.Lookup("voice"))
	_ = viper.BindPFlag("strip_markdown", flags.Lookup("strip-markdown"))
	_ = viper.BindPFlag("follow", rootCmd.Flags().Lookup("follow"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	setDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, voicesCmd, scriptCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("CHATREADER_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], appName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
