package core

import (
	"context"
	"iter"

	"engiplex.com/aura-chat/internal/store"
)

// InlineImage is an image attached to a submission.
type InlineImage struct {
	Data     []byte
	MIMEType string
}

type ChatRequest struct {
	History           []store.ChatMessage
	Text              string
	SystemInstruction string
	UseGrounding      bool
	Image             *InlineImage
}

// Fragment is one incremental piece of a streamed reply.
type Fragment struct {
	Text      string
	Citations []store.GroundingChunk
}

// Gateway is the remote model backend. Failed calls return *BackendError.
type Gateway interface {
	StreamChat(ctx context.Context, req ChatRequest) iter.Seq2[Fragment, error]
	GenerateImage(ctx context.Context, prompt string, ratio store.AspectRatio) (string, error)
	EditImage(ctx context.Context, prompt string, image InlineImage) (string, error)
}
