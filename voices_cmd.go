package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/chatreader/internal/speech/engines"
	"github.com/dgnsrekt/chatreader/internal/voice"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var voiceUsers []string

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the voices of the speech engine",
	Long: paragraph(fmt.Sprintf("\n%s the voices the configured engine offers. With %s, show which voice each username is read with.",
		keyword("List"), keyword("--user"))),
	Example: paragraph("chatreader voices\nchatreader voices --engine gtts --user alice --user bob"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, err := engines.New(cfg.engineConfig())
		if err != nil {
			return err
		}
		defer func() { _ = engine.Close() }()

		voices, err := engine.Voices(cmd.Context())
		if err != nil {
			return fmt.Errorf("unable to list %s voices: %w", engine.Name(), err)
		}
		return writeVoices(os.Stdout, engine.Name(), voices, voiceUsers, cfg.Voice)
	},
}

func init() {
	voicesCmd.Flags().StringSliceVarP(&voiceUsers, "user", "u", nil, "show the voice a username is read with")
}

var voiceHeader = lipgloss.NewStyle().Bold(true)

// writeVoices prints the voice table, then the assignment of every user.
// pinned mirrors the --voice option: when it names a known voice every user
// maps to it.
func writeVoices(w io.Writer, engine string, voices []voice.Voice, users []string, pinned string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", voiceHeader.Render(fmt.Sprintf("%s: %d voices", engine, len(voices))))

	idWidth := 2
	for _, v := range voices {
		idWidth = max(idWidth, len(v.ID))
	}
	for i, v := range voices {
		fmt.Fprintf(&b, "%3d  %-*s  %s", i, idWidth, v.ID, v.String())
		if v.Language != "" {
			b.WriteString(" " + faint("("+v.Language+")"))
		}
		b.WriteByte('\n')
	}

	if len(users) > 0 {
		b.WriteByte('\n')
		catalog := voice.NewCatalog(nil)
		catalog.Set(voices)

		var policy voice.Policy = voice.NewHashPolicy(catalog)
		if pinned != "" {
			if v, ok := catalog.Find(pinned); ok {
				policy = voice.FixedPolicy{Voice: v}
			}
		}
		for _, u := range users {
			b.WriteString(assignment(policy, u, len(voices)) + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err //nolint:wrapcheck
}

func assignment(policy voice.Policy, user string, n int) string {
	v, ok := policy.Assign(user)
	if !ok {
		return fmt.Sprintf("%s → engine default voice", keyword(user))
	}
	if _, fixed := policy.(voice.FixedPolicy); fixed {
		return fmt.Sprintf("%s → %s (pinned)", keyword(user), v.ID)
	}
	return fmt.Sprintf("%s → %s (%s of %d)", keyword(user), v.ID,
		humanize.Ordinal(voice.Index(user, n)+1), n)
}
