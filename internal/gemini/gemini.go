// Package gemini implements actions.Generator on top of the Gemini image models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cog-cli/internal/actions"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Gemini edits images with a Gemini image model.
type Gemini struct {
	client *genai.Client
	log    *zap.Logger

	// Model, when set, replaces the model named by each request.
	Model string
}

// New returns a provider keyed by apiKey, falling back to GEMINI_API_KEY.
func New(ctx context.Context, apiKey string, log *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gemini{client: client, log: log}, nil
}

// Instruction renders the text part sent alongside the source image (and mask).
func Instruction(in actions.EditInput) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(in.Instruction))
	if len(in.Mask) > 0 {
		b.WriteString("\n\nThe second image is a mask. Only change pixels where the mask is painted; keep everything else identical.")
	}
	if in.AspectRatio != "" {
		fmt.Fprintf(&b, "\nOutput aspect ratio: %s.", in.AspectRatio)
	}
	if in.Size != "" {
		fmt.Fprintf(&b, "\nOutput resolution: %s.", in.Size)
	}
	return b.String()
}

func (g *Gemini) Edit(ctx context.Context, in actions.EditInput) ([]byte, error) {
	if len(in.Source) == 0 {
		return nil, errors.New("empty source image")
	}
	parts := []*genai.Part{
		genai.NewPartFromBytes(in.Source, in.SourceMIME),
	}
	if len(in.Mask) > 0 {
		parts = append(parts, genai.NewPartFromBytes(in.Mask, "image/png"))
	}
	parts = append(parts, genai.NewPartFromText(Instruction(in)))

	model := in.Model
	if g.Model != "" {
		model = g.Model
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates returned from Gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("empty content returned from Gemini")
	}
	var text []string
	for _, p := range candidate.Content.Parts {
		if p.InlineData != nil && len(p.InlineData.Data) > 0 {
			g.log.Debug("gemini edit", zap.String("model", model), zap.Int("bytes", len(p.InlineData.Data)))
			return p.InlineData.Data, nil
		}
		if p.Text != "" {
			text = append(text, p.Text)
		}
	}
	if len(text) > 0 {
		return nil, fmt.Errorf("model returned no image: %s", strings.Join(text, " "))
	}
	return nil, fmt.Errorf("unexpected response format from Gemini")
}

var _ actions.Generator = (*Gemini)(nil)
