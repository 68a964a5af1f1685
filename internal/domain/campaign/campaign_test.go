package campaign

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validBrief() *Brief {
	return &Brief{
		CampaignID:     "summer-2025",
		TargetRegion:   "US",
		TargetAudience: "runners",
		Locales:        []string{"en-US", "es-MX"},
		Message:        map[string]string{"en-US": "Run further", "es-MX": "Corre más"},
		CTA:            map[string]string{"en-US": "Shop now", "es-MX": "Compra ya"},
		Products: []Product{
			{ID: "a", Name: "Shoe", Prompt: "red shoe", ImagePath: Placeholder},
			{ID: "b", Name: "Sock", ImagePath: "/briefs/summer-2025/assets/b.jpg"},
		},
		Brand:        Brand{PrimaryHex: "#FF0000", LogoPath: Placeholder},
		AspectRatios: []AspectRatio{AspectSquare, AspectPortrait},
		Template:     "bottom-cta@1.3.0",
	}
}

func TestNeedsGenerationExactSentinel(t *testing.T) {
	cases := map[string]bool{
		"placeholder":                true,
		"Placeholder":                false,
		"PLACEHOLDER":                false,
		" placeholder":               false,
		"placeholder ":               false,
		"":                           false,
		"/briefs/c/assets/b.jpg":     false,
		"pending":                    false,
		"placeholder/placeholder.png": false,
	}
	for path, want := range cases {
		if got := NeedsGeneration(path); got != want {
			t.Fatalf("NeedsGeneration(%q): want=%v got=%v", path, want, got)
		}
		if got := (Product{ImagePath: path}).NeedsGeneration(); got != want {
			t.Fatalf("Product.NeedsGeneration(%q): want=%v got=%v", path, want, got)
		}
	}
}

func TestAspectRatioSlugAndDimensions(t *testing.T) {
	if got := AspectPortrait.Slug(); got != "9-16" {
		t.Fatalf("slug: want=%q got=%q", "9-16", got)
	}
	w, h := AspectLandscape.Dimensions()
	if w != 1792 || h != 1024 {
		t.Fatalf("16:9 dims: got=%dx%d", w, h)
	}
	w, h = AspectPortrait.Dimensions()
	if w != 1024 || h != 1792 {
		t.Fatalf("9:16 dims: got=%dx%d", w, h)
	}
}

func TestVariantRatiosSkipsBaseAndDuplicates(t *testing.T) {
	b := validBrief()
	b.AspectRatios = []AspectRatio{AspectLandscape, AspectSquare, AspectPortrait, AspectLandscape}
	got := b.VariantRatios()
	if len(got) != 2 || got[0] != AspectLandscape || got[1] != AspectPortrait {
		t.Fatalf("variants: got=%v", got)
	}
}

func TestPrimaryCTAPrefersEnglish(t *testing.T) {
	b := validBrief()
	b.Locales = []string{"es-MX", "en-US"}
	loc, cta := b.PrimaryCTA()
	if loc != "en-US" || cta != "Shop now" {
		t.Fatalf("cta: got=%q %q", loc, cta)
	}
	delete(b.CTA, "en-US")
	loc, _ = b.PrimaryCTA()
	if loc != "es-MX" {
		t.Fatalf("fallback locale: want=es-MX got=%q", loc)
	}
}

func TestValidateAcceptsGoodBrief(t *testing.T) {
	if err := validBrief().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateReportsProblems(t *testing.T) {
	b := validBrief()
	b.Products = b.Products[:1]
	b.Products[0].Prompt = ""
	b.AspectRatios = []AspectRatio{"4:3"}
	b.Template = "bottom-cta@1.3"
	b.Brand.PrimaryHex = "red"
	delete(b.CTA, "es-MX")

	err := b.Validate()
	if !errors.Is(err, ErrInvalidBrief) {
		t.Fatalf("expected ErrInvalidBrief, got=%v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got=%T", err)
	}
	fields := map[string]bool{}
	for _, p := range verr.Problems {
		fields[p.Field] = true
	}
	for _, want := range []string{"products", "products[0].prompt", "aspect_ratios[0]", "template", "brand.primary_hex", "cta"} {
		if !fields[want] {
			t.Fatalf("missing problem for %q in %v", want, err)
		}
	}
}

func TestValidateRejectsDuplicateProductIDs(t *testing.T) {
	b := validBrief()
	b.Products[1].ID = "a"
	err := b.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate id error, got=%v", err)
	}
}

func TestValidTemplate(t *testing.T) {
	for s, want := range map[string]bool{
		"bottom-cta@1.3.0":      true,
		"hero_v2@10.0.1":        true,
		"bottom-cta@1.3.0-beta": false,
		"bottom cta@1.0.0":      false,
		"bottom-cta@01.0.0":     false,
		"@1.0.0":                false,
	} {
		if got := ValidTemplate(s); got != want {
			t.Fatalf("ValidTemplate(%q): want=%v got=%v", s, want, got)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusPending, StatusProcessing},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
		{StatusFailed, StatusProcessing},
		{StatusCompleted, StatusCompleted},
		{StatusCompleted, StatusProcessing},
		{StatusPending, StatusCompleted},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s allowed", tr[0], tr[1])
		}
	}
	denied := [][2]Status{
		{StatusPending, StatusFailed},
		{StatusProcessing, StatusProcessing},
		{StatusProcessing, StatusPending},
		{StatusCompleted, StatusFailed},
	}
	for _, tr := range denied {
		if CanTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s denied", tr[0], tr[1])
		}
	}
}

func TestMetadataTransition(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewMetadata("c", now)
	if m.Status != StatusPending || m.Version != SchemaVersion {
		t.Fatalf("new metadata: got=%+v", m)
	}
	if err := m.Transition(StatusFailed, now); err == nil {
		t.Fatalf("expected pending -> failed to be rejected")
	}
	if err := m.Transition(StatusProcessing, now.Add(time.Second)); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !m.UpdatedAt.Equal(now.Add(time.Second)) {
		t.Fatalf("updated_at: got=%v", m.UpdatedAt)
	}
}

func TestDecodeBriefYAMLAndJSON(t *testing.T) {
	yml := `
campaign: c
target_region: US
target_audience: all
locales: [en-US]
message: {en-US: hi}
cta: {en-US: buy}
products:
  - {id: a, name: A, prompt: p, image_path: placeholder}
  - {id: b, name: B, prompt: p, image_path: placeholder}
brand: {primary_hex: "#112233", logo_path: placeholder}
aspect_ratios: ["1:1"]
template: t@1.0.0
`
	b, err := DecodeBrief([]byte(yml), "")
	if err != nil {
		t.Fatalf("yaml decode: %v", err)
	}
	if b.CampaignID != "c" || len(b.Products) != 2 || b.AspectRatios[0] != AspectSquare {
		t.Fatalf("yaml decode: got=%+v", b)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("yaml brief should validate: %v", err)
	}

	_, err = DecodeBrief([]byte(`{"campaign": 5}`), "application/json")
	if !errors.Is(err, ErrInvalidBrief) {
		t.Fatalf("expected ErrInvalidBrief for bad json, got=%v", err)
	}
}
