package core

import (
	"context"
	"errors"
	"iter"

	"engiplex.com/aura-chat/internal/store"
	"github.com/google/uuid"
)

var ErrReplyDiscarded = errors.New("streamed reply was removed from its session")

// MergeStream folds a streamed reply into session sessionID. Once the first
// fragment arrives an empty model message is appended; each fragment appends
// its text to that message and replaces its citations when the fragment
// carries any. onUpdate, when set, observes the message after every fold.
// LastUpdated is stamped once the stream is exhausted. A stream that fails
// before its first fragment leaves the session untouched; a later failure
// leaves the partial message in place. Either way the error is returned.
func MergeStream(ctx context.Context, sessions *SessionStore, sessionID string, seq iter.Seq2[Fragment, error], onUpdate func(store.ChatMessage)) (store.ChatMessage, error) {
	next, stop := iter.Pull2(seq)
	defer stop()

	reply := store.ChatMessage{
		ID:     "model-" + uuid.NewString(),
		Author: store.AuthorModel,
	}

	frag, err, ok := next()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return reply, ctxErr
	}
	if ok && err != nil {
		return reply, err
	}

	if _, err := sessions.update(sessionID, func(cs store.ChatSession) store.ChatSession {
		cs.Messages = append(cs.Messages, reply)
		return cs
	}, false); err != nil {
		return reply, err
	}
	notify(onUpdate, reply)

	for ok {
		found := false
		if _, err := sessions.update(sessionID, func(cs store.ChatSession) store.ChatSession {
			for i := len(cs.Messages) - 1; i >= 0; i-- {
				if cs.Messages[i].ID != reply.ID {
					continue
				}
				msg := &cs.Messages[i]
				msg.Text += frag.Text
				if len(frag.Citations) > 0 {
					msg.GroundingChunks = cloneChunks(frag.Citations)
				}
				reply = msg.Clone()
				found = true
				break
			}
			return cs
		}, false); err != nil {
			return reply, err
		}
		if !found {
			return reply, ErrReplyDiscarded
		}
		notify(onUpdate, reply)

		frag, err, ok = next()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return reply, ctxErr
		}
		if ok && err != nil {
			return reply, err
		}
	}

	if err := sessions.Touch(sessionID); err != nil {
		return reply, err
	}
	return reply, nil
}

func cloneChunks(chunks []store.GroundingChunk) []store.GroundingChunk {
	return store.ChatMessage{GroundingChunks: chunks}.Clone().GroundingChunks
}

func notify(onUpdate func(store.ChatMessage), msg store.ChatMessage) {
	if onUpdate != nil {
		onUpdate(msg.Clone())
	}
}
