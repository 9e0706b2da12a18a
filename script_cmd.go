package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chatreader/internal/chat"
	"github.com/dgnsrekt/chatreader/internal/dom"
	"github.com/dgnsrekt/chatreader/internal/reader"
	"github.com/dgnsrekt/chatreader/internal/source"
	"github.com/dgnsrekt/chatreader/internal/speech/engines"
	"github.com/dgnsrekt/chatreader/internal/voice"
	"github.com/dgnsrekt/chatreader/utils"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	scriptVoices bool
	scriptWidth  uint
)

var scriptCmd = &cobra.Command{
	Use:   "script [SOURCE|DIR]",
	Short: "Print what would be read aloud",
	Long: paragraph(fmt.Sprintf("\n%s the utterances of a transcript in reading order without playing any audio.",
		keyword("Print"))),
	Example: paragraph("chatreader script transcript.html\nchatreader script --start chat-messages-42 --voices transcript.html"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg, _, err := sourceArg(args)
		if err != nil {
			return err
		}
		tr, err := source.Load(cmd.Context(), arg)
		if err != nil {
			return err
		}
		doc, err := tr.Document()
		if err != nil {
			return err
		}

		start, err := scriptStart(doc, cfg.Selectors, dom.NodeID(startAt))
		if err != nil {
			return err
		}
		records := chat.NewBuilder(doc, cfg.Selectors, cfg.transform()).Build(start)

		var policy voice.Policy
		if scriptVoices {
			policy = scriptPolicy(cmd, cfg)
		}
		return renderScript(os.Stdout, scriptMarkdown(tr.Name, records, policy))
	},
}

func init() {
	scriptCmd.Flags().StringVarP(&startAt, "start", "s", "", "start at the message with this element id")
	scriptCmd.Flags().BoolVar(&scriptVoices, "voices", false, "show the voice each utterance is read with")
	scriptCmd.Flags().UintVarP(&scriptWidth, "width", "w", 0, "word-wrap at width (set to 0 to use the terminal width)")
}

// scriptStart resolves the message to start from: the requested one, or
// the first message of the transcript.
func scriptStart(doc *dom.Document, sel chat.Selectors, requested dom.NodeID) (dom.NodeID, error) {
	if !requested.IsZero() {
		if !doc.Has(requested) {
			return "", fmt.Errorf("no element with id %q", requested)
		}
		return requested, nil
	}
	items := doc.FindAll(sel.ListItem())
	if len(items) == 0 {
		return "", reader.ErrNoMessages
	}
	return items[0], nil
}

// scriptPolicy assigns voices the way a reading session would. Failing to
// enumerate voices only drops the voice column.
func scriptPolicy(cmd *cobra.Command, cfg Config) voice.Policy {
	engine, err := engines.New(cfg.engineConfig())
	if err != nil {
		log.Warn("unable to create speech engine", "err", err)
		return nil
	}
	defer func() { _ = engine.Close() }()

	voices, err := engine.Voices(cmd.Context())
	if err != nil {
		log.Warn("unable to list voices", "engine", engine.Name(), "err", err)
		return nil
	}
	catalog := voice.NewCatalog(nil)
	catalog.Set(voices)
	if cfg.Voice != "" {
		if v, ok := catalog.Find(cfg.Voice); ok {
			return voice.FixedPolicy{Voice: v}
		}
	}
	return voice.NewHashPolicy(catalog)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "#", `\#`, "<", `\<`,
)

// scriptMarkdown renders records as a numbered list. policy may be nil.
func scriptMarkdown(title string, records []chat.Record, policy voice.Policy) string {
	var b strings.Builder
	if title == "" {
		title = "stdin"
	}
	fmt.Fprintf(&b, "# %s\n\n", markdownEscaper.Replace(title))
	if len(records) == 0 {
		b.WriteString("_Nothing to read._\n")
		return b.String()
	}

	for i, r := range records {
		fmt.Fprintf(&b, "%d. **%s**", i+1, markdownEscaper.Replace(r.Speaker()))
		if policy != nil {
			if v, ok := policy.Assign(r.Username); ok {
				fmt.Fprintf(&b, " _(%s)_", markdownEscaper.Replace(v.ID))
			}
		}
		fmt.Fprintf(&b, ": %s\n", markdownEscaper.Replace(utils.CollapseSpace(r.Text)))
	}
	return b.String()
}

func renderScript(w io.Writer, md string) error {
	style := styles.NoTTYStyle
	width := int(scriptWidth) //nolint:gosec
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		style = styles.LightStyle
		if termenv.HasDarkBackground() {
			style = styles.DarkStyle
		}
		if width == 0 {
			if tw, _, err := term.GetSize(int(f.Fd())); err == nil {
				width = min(tw, 120)
			}
		}
	}
	if width == 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	if _, err := fmt.Fprint(w, out); err != nil {
		return fmt.Errorf("unable to write to writer: %w", err)
	}
	return nil
}
