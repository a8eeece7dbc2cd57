package openai

import (
	"errors"
	"strings"
	"testing"

	sdk "github.com/openai/openai-go"

	"github.com/platewise-ai/governor/recipes"
	"github.com/platewise-ai/governor/upstream"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		status int
		want   upstream.Kind
	}{
		{429, upstream.KindRateLimited},
		{500, upstream.KindServer},
		{503, upstream.KindServer},
		{401, upstream.KindCredentials},
		{403, upstream.KindCredentials},
		{408, upstream.KindTimeout},
		{400, upstream.KindClient},
	}
	for _, tc := range cases {
		err := classify(&sdk.Error{StatusCode: tc.status})
		if got := upstream.Classify(err); got != tc.want {
			t.Errorf("status %d classified as %v, want %v", tc.status, got, tc.want)
		}
	}

	// Non-API errors pass through untouched for the generic classifier.
	plain := errors.New("connection refused")
	if got := classify(plain); got != plain {
		t.Fatalf("classify(%v) = %v, want unchanged", plain, got)
	}
}

func TestImageURL(t *testing.T) {
	if url, err := imageURL(recipes.RemoteImage("https://example.com/f.jpg")); err != nil || url != "https://example.com/f.jpg" {
		t.Fatalf("remote: (%q, %v)", url, err)
	}

	url, err := imageURL(recipes.InlineImage([]byte{0xFF, 0xD8}, "image/jpeg"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Fatalf("inline data url = %q", url)
	}

	if _, err := imageURL(recipes.Image{}); err == nil || upstream.Classify(err) != upstream.KindClient {
		t.Fatalf("zero image: err = %v, want client kind", err)
	}
}

func TestCompletionContent(t *testing.T) {
	if _, err := completionContent(&sdk.ChatCompletion{}); upstream.Classify(err) != upstream.KindGenerationFailed {
		t.Fatalf("no choices: %v", err)
	}

	empty := &sdk.ChatCompletion{Choices: []sdk.ChatCompletionChoice{{}}}
	if _, err := completionContent(empty); upstream.Classify(err) != upstream.KindGenerationFailed {
		t.Fatalf("empty content: %v", err)
	}

	ok := &sdk.ChatCompletion{Choices: []sdk.ChatCompletionChoice{
		{Message: sdk.ChatCompletionMessage{Content: `{"suggestions":[]}`}},
	}}
	if content, err := completionContent(ok); err != nil || content == "" {
		t.Fatalf("(%q, %v)", content, err)
	}
}
