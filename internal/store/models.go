package store

import "fmt"

type Author string

const (
	AuthorUser  Author = "user"
	AuthorModel Author = "model"
)

type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// GroundingChunk is one citation attached to a model reply.
type GroundingChunk struct {
	Web *WebSource `json:"web,omitempty"`
}

type ChatMessage struct {
	ID               string           `json:"id"`
	Author           Author           `json:"author"`
	Text             string           `json:"text"`
	IsError          bool             `json:"isError,omitempty"`
	IsWelcomeMessage bool             `json:"isWelcomeMessage,omitempty"`
	GroundingChunks  []GroundingChunk `json:"groundingChunks,omitempty"`
	ImageURL         string           `json:"imageUrl,omitempty"`
	UploadedImage    string           `json:"uploadedImage,omitempty"`
}

type ChatSession struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	LastUpdated        int64         `json:"lastUpdated"` // unix milliseconds
	Messages           []ChatMessage `json:"messages"`
	SystemInstruction  string        `json:"systemInstruction"`
	UseSearchGrounding bool          `json:"useSearchGrounding"`
}

type SavedPrompt struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectWide      AspectRatio = "16:9"
	AspectTall      AspectRatio = "9:16"
	AspectLandscape AspectRatio = "4:3"
	AspectPortrait  AspectRatio = "3:4"

	DefaultAspectRatio = AspectSquare
)

func ParseAspectRatio(s string) (AspectRatio, error) {
	switch r := AspectRatio(s); r {
	case AspectSquare, AspectWide, AspectTall, AspectLandscape, AspectPortrait:
		return r, nil
	case "":
		return DefaultAspectRatio, nil
	}
	return "", fmt.Errorf("unsupported aspect ratio %q", s)
}

const (
	DefaultTitle  = "New Chat"
	UntitledTitle = "Untitled Chat"
	TitleMaxChars = 40

	DefaultSystemInstruction = "You are ENGIPLEX AURA, a sophisticated and helpful AI assistant. " +
		"Your personality is a blend of professional, knowledgeable, and slightly futuristic. " +
		"You provide clear, concise, and accurate information. You should sound elegant and intelligent. " +
		"Do not use emojis."

	WelcomeMessageText = "Greetings. I am ENGIPLEX AURA. How may I assist you today?\n" +
		"---\nHere are a few things you can try:\n" +
		"---\nBrainstorm names for a new coffee brand\n" +
		"---\nExplain the theory of relativity in simple terms\n" +
		"---\nWrite a Python script to sort a list of files\n" +
		"---\nWrite a short story about a robot who discovers music\n" +
		"---\nHelp me debug a CSS layout issue"
)

// Clone returns a deep copy of the message.
func (m ChatMessage) Clone() ChatMessage {
	if m.GroundingChunks != nil {
		chunks := make([]GroundingChunk, len(m.GroundingChunks))
		for i, c := range m.GroundingChunks {
			if c.Web != nil {
				web := *c.Web
				c.Web = &web
			}
			chunks[i] = c
		}
		m.GroundingChunks = chunks
	}
	return m
}

// Clone returns a deep copy of the session, messages included.
func (s ChatSession) Clone() ChatSession {
	if s.Messages != nil {
		msgs := make([]ChatMessage, len(s.Messages))
		for i, m := range s.Messages {
			msgs[i] = m.Clone()
		}
		s.Messages = msgs
	}
	return s
}

// IsFresh reports whether the session holds nothing but its welcome message.
func (s ChatSession) IsFresh() bool {
	return len(s.Messages) == 1 && s.Messages[0].IsWelcomeMessage
}

func CloneSessions(sessions []ChatSession) []ChatSession {
	out := make([]ChatSession, len(sessions))
	for i, s := range sessions {
		out[i] = s.Clone()
	}
	return out
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
