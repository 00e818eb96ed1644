package core

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"engiplex.com/aura-chat/internal/config"
	"engiplex.com/aura-chat/internal/logger"
	"engiplex.com/aura-chat/internal/store"
	"engiplex.com/aura-chat/internal/utils"
	"google.golang.org/genai"
)

const (
	imageGenerationFailed = "Image generation failed. This may be due to safety policy restrictions. The API did not return an image."
	imageEditingFailed    = "Image editing failed. The API did not return an image. This may be due to safety policy restrictions."
)

// models is the slice of *genai.Models the gateway calls.
type models interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// GeminiGateway talks to the Gemini API for chat streaming, image generation
// and image editing.
type GeminiGateway struct {
	models         models
	chatModel      string
	imageModel     string
	imageEditModel string
}

func NewGeminiGateway(ctx context.Context, cfg config.Config) (*GeminiGateway, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.GeminiBaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.GeminiBaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGateway{
		models:         client.Models,
		chatModel:      cfg.ChatModel,
		imageModel:     cfg.ImageModel,
		imageEditModel: cfg.ImageEditModel,
	}, nil
}

func (g *GeminiGateway) chatConfig(systemInstruction string, useGrounding bool) *genai.GenerateContentConfig {
	temp := float32(0.5)
	topP := float32(0.95)
	topK := float32(64)

	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
		TopP:        &topP,
		TopK:        &topK,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
	}
	if useGrounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg
}

// StreamChat sends the conversation plus the new turn and yields reply
// fragments as they arrive. Iteration stops after the first error.
func (g *GeminiGateway) StreamChat(ctx context.Context, req ChatRequest) iter.Seq2[Fragment, error] {
	contents := historyToContents(req.History)

	var userParts []*genai.Part
	if req.Image != nil {
		userParts = append(userParts, &genai.Part{
			InlineData: &genai.Blob{Data: req.Image.Data, MIMEType: req.Image.MIMEType},
		})
	}
	userParts = append(userParts, &genai.Part{Text: req.Text})
	contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: userParts})

	cfg := g.chatConfig(req.SystemInstruction, req.UseGrounding)

	return func(yield func(Fragment, error) bool) {
		for resp, err := range g.models.GenerateContentStream(ctx, g.chatModel, contents, cfg) {
			if err != nil {
				yield(Fragment{}, classifyError(err))
				return
			}
			if !yield(fragmentFromResponse(resp), nil) {
				return
			}
		}
	}
}

func (g *GeminiGateway) GenerateImage(ctx context.Context, prompt string, ratio store.AspectRatio) (string, error) {
	if ratio == "" {
		ratio = store.DefaultAspectRatio
	}
	resp, err := g.models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
		AspectRatio:    string(ratio),
	})
	if err != nil {
		return "", classifyError(err)
	}

	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0] == nil ||
		resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		if resp != nil && len(resp.GeneratedImages) > 0 && resp.GeneratedImages[0] != nil {
			logger.Warnf("Image generation returned no image: %s", resp.GeneratedImages[0].RAIFilteredReason)
		} else {
			logger.Warnf("Image generation returned no images for model %s", g.imageModel)
		}
		return "", &BackendError{Kind: KindContentBlocked, Message: imageGenerationFailed}
	}

	return utils.EncodeDataURI("image/png", resp.GeneratedImages[0].Image.ImageBytes), nil
}

func (g *GeminiGateway) EditImage(ctx context.Context, prompt string, image InlineImage) (string, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: image.Data, MIMEType: image.MIMEType}},
			{Text: prompt},
		},
	}}

	resp, err := g.models.GenerateContent(ctx, g.imageEditModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	})
	if err != nil {
		return "", classifyError(err)
	}

	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return utils.EncodeDataURI("image/png", part.InlineData.Data), nil
			}
		}
	}
	return "", &BackendError{Kind: KindContentBlocked, Message: imageEditingFailed}
}

// historyToContents maps stored messages to model turns, dropping the
// welcome message, error messages and anything without text.
func historyToContents(history []store.ChatMessage) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range history {
		if msg.IsWelcomeMessage || msg.IsError || msg.Text == "" {
			continue
		}
		role := genai.RoleModel
		if msg.Author == store.AuthorUser {
			role = genai.RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Text}},
		})
	}
	return contents
}

func fragmentFromResponse(resp *genai.GenerateContentResponse) Fragment {
	var frag Fragment
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return frag
	}
	candidate := resp.Candidates[0]

	if candidate.Content != nil {
		var text strings.Builder
		for _, part := range candidate.Content.Parts {
			if part != nil && !part.Thought {
				text.WriteString(part.Text)
			}
		}
		frag.Text = text.String()
	}

	if gm := candidate.GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			frag.Citations = append(frag.Citations, store.GroundingChunk{
				Web: &store.WebSource{URI: chunk.Web.URI, Title: chunk.Web.Title},
			})
		}
	}
	return frag
}

// classifyError turns an SDK or transport failure into a *BackendError.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}

	code, status, message := 0, "", err.Error()
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status, message = apiErr.Code, apiErr.Status, apiErr.Message
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code, status, message = apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message
	}
	if message == "" {
		message = err.Error()
	}
	lower := strings.ToLower(message)

	switch {
	case code == 401 || code == 403 || status == "UNAUTHENTICATED" || status == "PERMISSION_DENIED" ||
		strings.Contains(lower, "api key not valid"):
		return &BackendError{Kind: KindAuth, Code: code, Message: message, Err: err}
	case code == 429 || status == "RESOURCE_EXHAUSTED" || strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "429"):
		return &BackendError{Kind: KindRateLimit, Code: code, Message: message, Err: err}
	default:
		return &BackendError{Kind: KindUnknown, Code: code, Message: message, Err: err}
	}
}
