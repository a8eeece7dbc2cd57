package recipes

import (
	"context"

	"github.com/platewise-ai/governor"
)

// Upstream names used by the Service. Each maps to its own limiter and
// cache in the Registry config.
const (
	UpstreamText   = "text"
	UpstreamImage  = "image"
	UpstreamVision = "vision"
)

// AI is the vendor surface the Service needs. Implementations call the
// actual model APIs; they return classified errors (see package upstream)
// and never apply caching or rate limiting themselves.
type AI interface {
	SuggestRecipes(ctx context.Context, p SuggestParams) ([]Suggestion, error)
	GeneratePhoto(ctx context.Context, p PhotoParams) (Image, error)
	IdentifyIngredients(ctx context.Context, p IdentifyParams) ([]string, error)
}

// Service is the application-facing recipe API. Every method goes through
// a governed client: results may come from the cache, the upstream, or the
// operation's fallback, and upstream outages never surface as errors.
type Service struct {
	suggest  *governor.Client[SuggestParams, []Suggestion]
	photo    *governor.Client[PhotoParams, Image]
	identify *governor.Client[IdentifyParams, []string]
}

// NewService wires the three governed clients from reg over ai.
func NewService(reg *governor.Registry, ai AI) (*Service, error) {
	suggest, err := governor.NewClient(reg, governor.Operation[SuggestParams, []Suggestion]{
		Name:     "suggest_recipes",
		Upstream: UpstreamText,
		Key:      IngredientsKey,
		Call:     ai.SuggestRecipes,
		Fallback: FallbackSuggestions,
		Validate: SuggestParams.Validate,
	})
	if err != nil {
		return nil, err
	}
	photo, err := governor.NewClient(reg, governor.Operation[PhotoParams, Image]{
		Name:     "generate_photo",
		Upstream: UpstreamImage,
		Key:      ImageKey,
		Call:     ai.GeneratePhoto,
		Fallback: FallbackPhoto,
		Validate: PhotoParams.Validate,
	})
	if err != nil {
		return nil, err
	}
	identify, err := governor.NewClient(reg, governor.Operation[IdentifyParams, []string]{
		Name:     "identify_ingredients",
		Upstream: UpstreamVision,
		Key:      VisionKey,
		Call:     ai.IdentifyIngredients,
		Fallback: FallbackIdentify,
		Validate: IdentifyParams.Validate,
	})
	if err != nil {
		return nil, err
	}
	return &Service{suggest: suggest, photo: photo, identify: identify}, nil
}

// Suggest returns recipe ideas for the given ingredients.
func (s *Service) Suggest(ctx context.Context, p SuggestParams) ([]Suggestion, error) {
	return s.suggest.Generate(ctx, p)
}

// Photo returns a food photo for a named recipe.
func (s *Service) Photo(ctx context.Context, p PhotoParams) (Image, error) {
	return s.photo.Generate(ctx, p)
}

// Identify returns the ingredients visible in a photo.
func (s *Service) Identify(ctx context.Context, p IdentifyParams) ([]string, error) {
	return s.identify.Generate(ctx, p)
}

// CacheStats reports per-upstream cache counters for the stats endpoint.
func (s *Service) CacheStats() map[string]governor.CacheStats {
	return map[string]governor.CacheStats{
		UpstreamText:   s.suggest.CacheStats(),
		UpstreamImage:  s.photo.CacheStats(),
		UpstreamVision: s.identify.CacheStats(),
	}
}

// CleanupCaches sweeps expired entries from all three caches and returns
// the total removed. Callers schedule this.
func (s *Service) CleanupCaches() int {
	return s.suggest.CleanupCache() + s.photo.CleanupCache() + s.identify.CleanupCache()
}
