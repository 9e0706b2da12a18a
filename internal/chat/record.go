// Package chat turns a run of transcript elements into the utterances the
// reader speaks.
package chat

import "github.com/dgnsrekt/chatreader/internal/dom"

// Record is one queued utterance. Empty Username or Avatar means the value
// is unknown.
type Record struct {
	Node     dom.NodeID // owning transcript element
	Text     string     // what gets spoken
	Username string
	Avatar   string
}

// Speaker returns the username for display, falling back to "Anonymous".
func (r Record) Speaker() string {
	if r.Username == "" {
		return "Anonymous"
	}
	return r.Username
}

// Selectors describe where a message keeps its parts. The defaults match the
// markup of the chat client the reader was written for.
type Selectors struct {
	ListItemIDPrefix string `mapstructure:"list_item"`
	UsernameIDPrefix string `mapstructure:"username"`
	ContentIDPrefix  string `mapstructure:"content"`
	ReplyClassPrefix string `mapstructure:"reply"`
	AvatarAttr       string `mapstructure:"avatar_attr"`
	AvatarValue      string `mapstructure:"avatar_value"`
}

// DefaultSelectors returns the stock selectors.
func DefaultSelectors() Selectors {
	return Selectors{
		ListItemIDPrefix: "chat-messages-",
		UsernameIDPrefix: "message-username",
		ContentIDPrefix:  "message-content",
		ReplyClassPrefix: "repliedText",
		AvatarAttr:       "aria-hidden",
		AvatarValue:      "true",
	}
}

// withDefaults fills empty fields from DefaultSelectors.
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.ListItemIDPrefix == "" {
		s.ListItemIDPrefix = d.ListItemIDPrefix
	}
	if s.UsernameIDPrefix == "" {
		s.UsernameIDPrefix = d.UsernameIDPrefix
	}
	if s.ContentIDPrefix == "" {
		s.ContentIDPrefix = d.ContentIDPrefix
	}
	if s.ReplyClassPrefix == "" {
		s.ReplyClassPrefix = d.ReplyClassPrefix
	}
	if s.AvatarAttr == "" {
		s.AvatarAttr = d.AvatarAttr
		s.AvatarValue = d.AvatarValue
	}
	return s
}

// ListItem matches the message list entries a reading session can start
// from.
func (s Selectors) ListItem() dom.Matcher {
	s = s.withDefaults()
	return dom.And(dom.Tag("li"), dom.IDPrefix(s.ListItemIDPrefix))
}
