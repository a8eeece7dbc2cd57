// Package recipes holds the domain types for AI-assisted recipe
// generation: suggestion and image values, parameter types with their
// cache-key normalizations, and the total fallback values the governed
// clients serve when an upstream is unavailable.
package recipes

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Suggestion is one generated recipe idea.
type Suggestion struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	Minutes     int      `json:"minutes"`
}

type imageKind int

const (
	imageInline imageKind = iota + 1
	imageRemote
)

// Image is a generated food photo: either inline bytes with a MIME type
// or a URL hosted by the upstream. Consume it through Inline and Remote;
// exactly one of them reports ok for a non-zero Image.
type Image struct {
	kind imageKind
	data []byte
	mime string
	url  string
}

// InlineImage wraps image bytes returned directly by an upstream.
func InlineImage(data []byte, mime string) Image {
	return Image{kind: imageInline, data: data, mime: mime}
}

// RemoteImage wraps an upstream-hosted image URL.
func RemoteImage(url string) Image {
	return Image{kind: imageRemote, url: url}
}

// Inline returns the image bytes and MIME type when the image is inline.
func (i Image) Inline() (data []byte, mime string, ok bool) {
	return i.data, i.mime, i.kind == imageInline
}

// Remote returns the image URL when the image is upstream-hosted.
func (i Image) Remote() (url string, ok bool) {
	return i.url, i.kind == imageRemote
}

// IsZero reports whether the image carries no content.
func (i Image) IsZero() bool { return i.kind == 0 }

// MarshalJSON emits {"kind":"inline","mime":...,"data":<base64>} or
// {"kind":"remote","url":...}.
func (i Image) MarshalJSON() ([]byte, error) {
	switch i.kind {
	case imageInline:
		return json.Marshal(struct {
			Kind string `json:"kind"`
			MIME string `json:"mime"`
			Data []byte `json:"data"`
		}{"inline", i.mime, i.data})
	case imageRemote:
		return json.Marshal(struct {
			Kind string `json:"kind"`
			URL  string `json:"url"`
		}{"remote", i.url})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (i *Image) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*i = Image{}
		return nil
	}
	var raw struct {
		Kind string `json:"kind"`
		MIME string `json:"mime"`
		Data []byte `json:"data"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "inline":
		*i = InlineImage(raw.Data, raw.MIME)
	case "remote":
		*i = RemoteImage(raw.URL)
	default:
		return errors.New("recipes: unknown image kind " + raw.Kind)
	}
	return nil
}

// SuggestParams asks for recipe ideas from what the user has on hand.
type SuggestParams struct {
	Ingredients []string `json:"ingredients"`
	Diet        string   `json:"diet,omitempty"`  // e.g. "vegetarian"; free text
	Count       int      `json:"count,omitempty"` // suggestions wanted; default 3
}

// Validate rejects requests with no usable ingredients.
func (p SuggestParams) Validate() error {
	for _, ing := range p.Ingredients {
		if strings.TrimSpace(ing) != "" {
			return nil
		}
	}
	return errors.New("at least one ingredient is required")
}

// PhotoParams asks for a food photo of a named recipe.
type PhotoParams struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Validate rejects requests without a recipe name.
func (p PhotoParams) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("recipe name is required")
	}
	return nil
}

// IdentifyParams asks which ingredients are visible in a photo.
type IdentifyParams struct {
	Image Image `json:"image"`
}

// Validate rejects requests without an image.
func (p IdentifyParams) Validate() error {
	if p.Image.IsZero() {
		return errors.New("an image is required")
	}
	return nil
}

// IngredientsKey normalizes an ingredient list into a cache key: each
// entry trimmed and lowercased, blanks dropped, the rest sorted and
// joined. "Chicken, Rice" and "rice , chicken" map to the same key.
func IngredientsKey(p SuggestParams) string {
	norm := make([]string, 0, len(p.Ingredients))
	for _, ing := range p.Ingredients {
		ing = strings.ToLower(strings.TrimSpace(ing))
		if ing != "" {
			norm = append(norm, ing)
		}
	}
	sort.Strings(norm)
	count := p.Count
	if count <= 0 {
		count = DefaultSuggestionCount
	}
	var b strings.Builder
	b.WriteString(strings.Join(norm, ","))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(p.Diet)))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(count))
	return b.String()
}

// maxDescriptionKeyLen bounds how much of the free-text description
// participates in the image cache key.
const maxDescriptionKeyLen = 80

// ImageKey normalizes photo params into a cache key: lowercased trimmed
// name plus the description truncated to a fixed prefix.
func ImageKey(p PhotoParams) string {
	desc := strings.ToLower(strings.TrimSpace(p.Description))
	if len(desc) > maxDescriptionKeyLen {
		desc = desc[:maxDescriptionKeyLen]
	}
	return strings.ToLower(strings.TrimSpace(p.Name)) + "|" + desc
}

// VisionKey derives a cache key from the image content: sha256 of the
// inline bytes, or of the URL for remote images.
func VisionKey(p IdentifyParams) string {
	var sum [sha256.Size]byte
	if data, _, ok := p.Image.Inline(); ok {
		sum = sha256.Sum256(data)
	} else if url, ok := p.Image.Remote(); ok {
		sum = sha256.Sum256([]byte(url))
	}
	return hex.EncodeToString(sum[:])
}

// DefaultSuggestionCount is used when SuggestParams.Count is unset.
const DefaultSuggestionCount = 3

// PlaceholderImageURL is the static photo served when image generation
// is unavailable.
const PlaceholderImageURL = "https://static.platewise.ai/images/placeholder-dish.png"

// FallbackSuggestions returns static pantry recipes that reuse the
// caller's ingredients where possible. It is total: any valid params get
// a non-empty result.
func FallbackSuggestions(p SuggestParams) []Suggestion {
	first := "your ingredients"
	for _, ing := range p.Ingredients {
		if ing = strings.TrimSpace(ing); ing != "" {
			first = strings.ToLower(ing)
			break
		}
	}
	return []Suggestion{
		{
			Name:        "Simple stir-fry",
			Description: "A quick stir-fry built around " + first + ".",
			Ingredients: append([]string{}, p.Ingredients...),
			Steps: []string{
				"Chop everything into bite-sized pieces.",
				"Stir-fry over high heat with oil, garlic, and a splash of soy sauce.",
				"Serve over rice or noodles.",
			},
			Minutes: 20,
		},
		{
			Name:        "Pantry soup",
			Description: "A forgiving soup that works with " + first + " and whatever else is around.",
			Ingredients: append([]string{}, p.Ingredients...),
			Steps: []string{
				"Sweat an onion in a large pot.",
				"Add your ingredients and enough stock or water to cover.",
				"Simmer until tender, then season to taste.",
			},
			Minutes: 35,
		},
	}
}

// FallbackPhoto returns the placeholder image descriptor.
func FallbackPhoto(PhotoParams) Image {
	return RemoteImage(PlaceholderImageURL)
}

// FallbackIdentify returns an empty ingredient list: the caller can still
// proceed, just without vision assistance.
func FallbackIdentify(IdentifyParams) []string {
	return []string{}
}
