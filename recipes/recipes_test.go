package recipes

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestIngredientsKey_Normalization(t *testing.T) {
	a := IngredientsKey(SuggestParams{Ingredients: []string{"Chicken", " Rice "}})
	b := IngredientsKey(SuggestParams{Ingredients: []string{"rice", "chicken"}})
	if a != b {
		t.Fatalf("equivalent ingredient lists produced different keys:\n%q\n%q", a, b)
	}

	c := IngredientsKey(SuggestParams{Ingredients: []string{"rice", "chicken", "garlic"}})
	if a == c {
		t.Fatal("different ingredient lists produced the same key")
	}
}

func TestIngredientsKey_DropsBlanksAndDistinguishesOptions(t *testing.T) {
	base := IngredientsKey(SuggestParams{Ingredients: []string{"egg", "", "  "}})
	if base != IngredientsKey(SuggestParams{Ingredients: []string{"Egg"}}) {
		t.Fatal("blank entries must not affect the key")
	}

	withDiet := IngredientsKey(SuggestParams{Ingredients: []string{"egg"}, Diet: "Vegetarian"})
	if withDiet == base {
		t.Fatal("diet must affect the key")
	}
	if withDiet != IngredientsKey(SuggestParams{Ingredients: []string{"egg"}, Diet: " vegetarian "}) {
		t.Fatal("diet must be normalized")
	}

	if IngredientsKey(SuggestParams{Ingredients: []string{"egg"}, Count: DefaultSuggestionCount}) != base {
		t.Fatal("explicit default count must equal unset count")
	}
	if IngredientsKey(SuggestParams{Ingredients: []string{"egg"}, Count: 5}) == base {
		t.Fatal("count must affect the key")
	}
}

func TestImageKey(t *testing.T) {
	a := ImageKey(PhotoParams{Name: " Pad Thai ", Description: "Noodles"})
	b := ImageKey(PhotoParams{Name: "pad thai", Description: "noodles"})
	if a != b {
		t.Fatalf("equivalent photo params produced different keys:\n%q\n%q", a, b)
	}

	long := strings.Repeat("x", 200)
	k1 := ImageKey(PhotoParams{Name: "soup", Description: long})
	k2 := ImageKey(PhotoParams{Name: "soup", Description: long + "tail"})
	if k1 != k2 {
		t.Fatal("description beyond the truncation bound must not affect the key")
	}
}

func TestVisionKey(t *testing.T) {
	inline := VisionKey(IdentifyParams{Image: InlineImage([]byte("jpegbytes"), "image/jpeg")})
	if len(inline) != 64 {
		t.Fatalf("key length = %d, want 64 hex chars", len(inline))
	}
	if inline != VisionKey(IdentifyParams{Image: InlineImage([]byte("jpegbytes"), "image/jpeg")}) {
		t.Fatal("same bytes must produce the same key")
	}
	if inline == VisionKey(IdentifyParams{Image: InlineImage([]byte("other"), "image/jpeg")}) {
		t.Fatal("different bytes must produce different keys")
	}

	remote := VisionKey(IdentifyParams{Image: RemoteImage("https://example.com/fridge.jpg")})
	if remote == inline || len(remote) != 64 {
		t.Fatalf("remote key = %q", remote)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := (SuggestParams{Ingredients: []string{" ", ""}}).Validate(); err == nil {
		t.Fatal("blank-only ingredients must fail validation")
	}
	if err := (SuggestParams{Ingredients: []string{"rice"}}).Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
	if err := (PhotoParams{}).Validate(); err == nil {
		t.Fatal("missing name must fail validation")
	}
	if err := (IdentifyParams{}).Validate(); err == nil {
		t.Fatal("missing image must fail validation")
	}
	if err := (IdentifyParams{Image: RemoteImage("https://example.com/x.jpg")}).Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
}

func TestImage_Variants(t *testing.T) {
	in := InlineImage([]byte{1, 2, 3}, "image/png")
	if data, mime, ok := in.Inline(); !ok || mime != "image/png" || len(data) != 3 {
		t.Fatalf("Inline() = (%v, %q, %v)", data, mime, ok)
	}
	if _, ok := in.Remote(); ok {
		t.Fatal("inline image reported as remote")
	}

	re := RemoteImage("https://example.com/dish.png")
	if url, ok := re.Remote(); !ok || url != "https://example.com/dish.png" {
		t.Fatalf("Remote() = (%q, %v)", url, ok)
	}
	if _, _, ok := re.Inline(); ok {
		t.Fatal("remote image reported as inline")
	}

	if !(Image{}).IsZero() || in.IsZero() || re.IsZero() {
		t.Fatal("IsZero misreports")
	}
}

func TestImage_JSONRoundTrip(t *testing.T) {
	for _, img := range []Image{
		InlineImage([]byte("png"), "image/png"),
		RemoteImage("https://example.com/dish.png"),
	} {
		b, err := json.Marshal(img)
		if err != nil {
			t.Fatal(err)
		}
		var got Image
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if gotURL, ok1 := got.Remote(); ok1 {
			if wantURL, ok2 := img.Remote(); !ok2 || gotURL != wantURL {
				t.Fatalf("remote round trip: got %q", gotURL)
			}
			continue
		}
		gotData, gotMIME, ok := got.Inline()
		wantData, wantMIME, _ := img.Inline()
		if !ok || gotMIME != wantMIME || string(gotData) != string(wantData) {
			t.Fatalf("inline round trip: got (%q, %q, %v)", gotData, gotMIME, ok)
		}
	}

	var null Image
	if err := json.Unmarshal([]byte("null"), &null); err != nil || !null.IsZero() {
		t.Fatalf("null round trip: (%+v, %v)", null, err)
	}
}

func TestFallbacks_AreTotal(t *testing.T) {
	sugg := FallbackSuggestions(SuggestParams{Ingredients: []string{" Tofu ", "rice"}})
	if len(sugg) == 0 {
		t.Fatal("fallback suggestions must not be empty")
	}
	for _, s := range sugg {
		if s.Name == "" || len(s.Steps) == 0 || s.Minutes <= 0 {
			t.Fatalf("incomplete fallback suggestion: %+v", s)
		}
	}
	if !strings.Contains(sugg[0].Description, "tofu") {
		t.Fatalf("fallback should mention the first ingredient: %q", sugg[0].Description)
	}

	if url, ok := FallbackPhoto(PhotoParams{Name: "soup"}).Remote(); !ok || url != PlaceholderImageURL {
		t.Fatalf("fallback photo = (%q, %v)", url, ok)
	}

	if got := FallbackIdentify(IdentifyParams{}); got == nil || len(got) != 0 {
		t.Fatalf("fallback identify = %#v, want empty non-nil slice", got)
	}
}
