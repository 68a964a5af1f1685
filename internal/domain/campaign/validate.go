package campaign

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
)

var ErrInvalidBrief = errors.New("invalid brief")

var (
	hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	templateRe = regexp.MustCompile(`^([\w-]+)@(\d+\.\d+\.\d+)$`)
)

type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a brief.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return ErrInvalidBrief.Error()
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Message)
	}
	return ErrInvalidBrief.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidBrief }

func (e *ValidationError) add(field, format string, args ...any) {
	e.Problems = append(e.Problems, FieldProblem{Field: field, Message: fmt.Sprintf(format, args...)})
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func briefValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("brandhex", func(fl validator.FieldLevel) bool {
			return hexColorRe.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("aspect", func(fl validator.FieldLevel) bool {
			return AspectRatio(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("template", func(fl validator.FieldLevel) bool {
			return ValidTemplate(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// ValidTemplate checks name@major.minor.patch with a plain release version.
func ValidTemplate(s string) bool {
	m := templateRe.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	ver, err := semver.StrictNewVersion(m[2])
	if err != nil {
		return false
	}
	return ver.Prerelease() == "" && ver.Metadata() == ""
}

// Validate checks structural rules plus locale completeness, unique product
// ids, and that every placeholder product carries a prompt.
func (b *Brief) Validate() error {
	verr := &ValidationError{}

	if err := briefValidator().Struct(b); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate brief: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.add(fieldPath(fe.Namespace()), "%s", describe(fe))
		}
	}

	missingMsg, missingCTA := []string{}, []string{}
	for _, loc := range b.Locales {
		if strings.TrimSpace(b.Message[loc]) == "" {
			missingMsg = append(missingMsg, loc)
		}
		if strings.TrimSpace(b.CTA[loc]) == "" {
			missingCTA = append(missingCTA, loc)
		}
	}
	if len(missingMsg) > 0 {
		verr.add("message", "missing translations for locales %s", strings.Join(missingMsg, ", "))
	}
	if len(missingCTA) > 0 {
		verr.add("cta", "missing translations for locales %s", strings.Join(missingCTA, ", "))
	}

	seen := map[string]int{}
	for i, p := range b.Products {
		if prev, ok := seen[p.ID]; ok && p.ID != "" {
			verr.add(fmt.Sprintf("products[%d].id", i), "duplicate of products[%d]", prev)
		} else {
			seen[p.ID] = i
		}
		if p.NeedsGeneration() && strings.TrimSpace(p.Prompt) == "" {
			verr.add(fmt.Sprintf("products[%d].prompt", i), "required when image_path is %q", Placeholder)
		}
	}

	if len(verr.Problems) == 0 {
		return nil
	}
	sort.SliceStable(verr.Problems, func(i, j int) bool { return verr.Problems[i].Field < verr.Problems[j].Field })
	return verr
}

func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map {
			return "needs at least " + fe.Param() + " entries"
		}
		return "must be at least " + fe.Param() + " characters"
	case "brandhex":
		return "must be a #RRGGBB hex color"
	case "aspect":
		return fmt.Sprintf("unsupported aspect ratio %q (allowed: 1:1, 9:16, 16:9)", fe.Value())
	case "template":
		return "must look like name@major.minor.patch"
	case "excludesall":
		return "must not contain path separators"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
