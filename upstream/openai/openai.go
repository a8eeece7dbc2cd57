// Package openai implements the recipes.AI interface against the OpenAI
// API. It does no caching or rate limiting of its own; the governed
// clients own that. Its one extra job is mapping SDK failures onto the
// upstream error taxonomy.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/platewise-ai/governor/recipes"
	"github.com/platewise-ai/governor/upstream"
)

// Default models; override per Client field before use.
const (
	DefaultTextModel   = "gpt-4o-mini"
	DefaultImageModel  = "dall-e-3"
	DefaultVisionModel = "gpt-4o-mini"
)

const suggestSystemPrompt = `You are a recipe assistant. Given ingredients the user has on hand,
suggest recipes that use them. Respond with a JSON object of the form
{"suggestions": [{"name": ..., "description": ..., "ingredients": [...],
"steps": [...], "minutes": ...}]} and nothing else.`

const identifySystemPrompt = `You identify food ingredients in photos. Respond with a JSON object
of the form {"ingredients": ["..."]} listing the distinct ingredients
visible, lowercased, and nothing else.`

// Client adapts the OpenAI API to recipes.AI.
type Client struct {
	api sdk.Client

	TextModel   string
	ImageModel  string
	VisionModel string
}

// New creates a Client. The optional baseURL overrides the API endpoint
// (pass "" for the default).
func New(apiKey, baseURL string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		api:         sdk.NewClient(opts...),
		TextModel:   DefaultTextModel,
		ImageModel:  DefaultImageModel,
		VisionModel: DefaultVisionModel,
	}
}

// SuggestRecipes implements recipes.AI.
func (c *Client) SuggestRecipes(ctx context.Context, p recipes.SuggestParams) ([]recipes.Suggestion, error) {
	count := p.Count
	if count <= 0 {
		count = recipes.DefaultSuggestionCount
	}
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Suggest %d recipes using: %s.", count, strings.Join(p.Ingredients, ", "))
	if p.Diet != "" {
		fmt.Fprintf(&prompt, " Dietary requirement: %s.", p.Diet)
	}

	completion, err := c.api.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model: c.TextModel,
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(suggestSystemPrompt),
			sdk.UserMessage(prompt.String()),
		},
		ResponseFormat: sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &sdk.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, classify(err)
	}
	content, err := completionContent(completion)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Suggestions []recipes.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, upstream.NewError(upstream.KindInvalidResponse, "parsing suggestions payload", err)
	}
	if len(parsed.Suggestions) == 0 {
		return nil, upstream.NewError(upstream.KindGenerationFailed, "model returned no suggestions", nil)
	}
	return parsed.Suggestions, nil
}

// GeneratePhoto implements recipes.AI.
func (c *Client) GeneratePhoto(ctx context.Context, p recipes.PhotoParams) (recipes.Image, error) {
	prompt := "A professional food photograph of " + p.Name
	if p.Description != "" {
		prompt += ": " + p.Description
	}

	result, err := c.api.Images.Generate(ctx, sdk.ImageGenerateParams{
		Model:          sdk.ImageModel(c.ImageModel),
		Prompt:         prompt,
		N:              sdk.Int(1),
		ResponseFormat: sdk.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return recipes.Image{}, classify(err)
	}
	if len(result.Data) == 0 {
		return recipes.Image{}, upstream.NewError(upstream.KindGenerationFailed, "image response has no data", nil)
	}

	d := result.Data[0]
	switch {
	case d.B64JSON != "":
		raw, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return recipes.Image{}, upstream.NewError(upstream.KindInvalidResponse, "decoding image payload", err)
		}
		return recipes.InlineImage(raw, "image/png"), nil
	case d.URL != "":
		return recipes.RemoteImage(d.URL), nil
	default:
		return recipes.Image{}, upstream.NewError(upstream.KindInvalidResponse, "image response has neither b64 nor url", nil)
	}
}

// IdentifyIngredients implements recipes.AI.
func (c *Client) IdentifyIngredients(ctx context.Context, p recipes.IdentifyParams) ([]string, error) {
	url, err := imageURL(p.Image)
	if err != nil {
		return nil, err
	}

	completion, err := c.api.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model: c.VisionModel,
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(identifySystemPrompt),
			sdk.UserMessage([]sdk.ChatCompletionContentPartUnionParam{
				sdk.TextContentPart("Which ingredients are visible in this photo?"),
				sdk.ImageContentPart(sdk.ChatCompletionContentPartImageImageURLParam{URL: url}),
			}),
		},
		ResponseFormat: sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &sdk.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, classify(err)
	}
	content, err := completionContent(completion)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Ingredients []string `json:"ingredients"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, upstream.NewError(upstream.KindInvalidResponse, "parsing ingredients payload", err)
	}
	return parsed.Ingredients, nil
}

// imageURL renders an Image as something the vision API accepts: remote
// images pass through, inline images become a data URL.
func imageURL(img recipes.Image) (string, error) {
	if url, ok := img.Remote(); ok {
		return url, nil
	}
	if data, mime, ok := img.Inline(); ok {
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}
	return "", upstream.NewError(upstream.KindClient, "empty image", nil)
}

func completionContent(completion *sdk.ChatCompletion) (string, error) {
	if len(completion.Choices) == 0 {
		return "", upstream.NewError(upstream.KindGenerationFailed, "completion has no choices", nil)
	}
	content := completion.Choices[0].Message.Content
	if content == "" {
		return "", upstream.NewError(upstream.KindGenerationFailed, "completion content is empty", nil)
	}
	return content, nil
}

// classify maps SDK failures onto the upstream taxonomy by HTTP status.
// Non-API errors (network, context) pass through for the generic
// classifier to inspect.
func classify(err error) error {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		return upstream.StatusError(apierr.StatusCode, "openai api error", err)
	}
	return err
}
