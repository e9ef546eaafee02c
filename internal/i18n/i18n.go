// Package i18n holds the user-facing message catalogue, keyed by locale tag.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

//go:embed locales/*.json
var localesFS embed.FS

type Key string

const (
	MeasurementSaved         Key = "measurement.saved"
	MeasurementDeleted       Key = "measurement.deleted"
	MeasurementDeleteConfirm Key = "measurement.delete_confirm"
	MeasurementNotFound      Key = "measurement.not_found"
	MeasurementDeleteFailed  Key = "measurement.delete_failed"

	DistanceExceeded       Key = "submission.distance_exceeded"
	PositionUnknown        Key = "submission.position_unknown"
	PositionUnknownWarning Key = "submission.position_unknown_warning"
	WaterInconclusive      Key = "submission.water_inconclusive"
	CheckingWater          Key = "submission.checking_water"
	PhotoEncodingFailed    Key = "submission.photo_encoding_failed"
	PhotoUnsupported       Key = "submission.photo_unsupported"
	PhotoTooLarge          Key = "submission.photo_too_large"
	PhotoUploadFailed      Key = "submission.photo_upload_failed"
	RecordInsertFailed     Key = "submission.record_insert_failed"
	ThicknessRequired      Key = "submission.thickness_required"
	ThicknessInvalid       Key = "submission.thickness_invalid"
	InvalidState           Key = "submission.invalid_state"
	Busy                   Key = "submission.busy"

	PositionError      Key = "position.error"
	InvalidRequest     Key = "request.invalid"
	SessionNotFound    Key = "session.not_found"
	WeatherUnavailable Key = "weather.unavailable"
	InternalError      Key = "error.internal"
)

// Bundle is loaded once at startup and shared by all requests.
type Bundle struct {
	catalog  *catalog.Builder
	matcher  language.Matcher
	tags     []language.Tag
	fallback language.Tag
}

// Load reads the embedded catalogues. defaultLocale is used when a request's
// languages match nothing and for keys a locale does not translate.
func Load(defaultLocale string) (*Bundle, error) {
	fallback, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("invalid default locale %q: %w", defaultLocale, err)
	}

	entries, err := localesFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read locales: %w", err)
	}

	b := catalog.NewBuilder(catalog.Fallback(fallback))
	tags := []language.Tag{fallback}
	haveFallback := false

	for _, e := range entries {
		name := e.Name()
		tag, err := language.Parse(strings.TrimSuffix(name, path.Ext(name)))
		if err != nil {
			return nil, fmt.Errorf("invalid locale file %s: %w", name, err)
		}

		raw, err := localesFS.ReadFile("locales/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		var msgs map[string]string
		if err := json.Unmarshal(raw, &msgs); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		for k, v := range msgs {
			if err := b.SetString(tag, k, v); err != nil {
				return nil, fmt.Errorf("failed to add %s/%s: %w", tag, k, err)
			}
		}

		if tag == fallback {
			haveFallback = true
			continue
		}
		tags = append(tags, tag)
	}

	if !haveFallback {
		return nil, fmt.Errorf("no catalogue for default locale %q", defaultLocale)
	}

	return &Bundle{
		catalog:  b,
		matcher:  language.NewMatcher(tags),
		tags:     tags,
		fallback: fallback,
	}, nil
}

// Tags lists the supported locales, default first.
func (b *Bundle) Tags() []language.Tag {
	return append([]language.Tag(nil), b.tags...)
}

// ForAcceptLanguage picks the best supported locale for an Accept-Language
// header value.
func (b *Bundle) ForAcceptLanguage(header string) *Localizer {
	prefs, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(prefs) == 0 {
		return b.For(b.fallback)
	}
	_, idx, _ := b.matcher.Match(prefs...)
	return b.For(b.tags[idx])
}

func (b *Bundle) For(tag language.Tag) *Localizer {
	return &Localizer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(b.catalog)),
	}
}

type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// T formats the message for key. Unknown keys are returned verbatim.
func (l *Localizer) T(key Key, args ...any) string {
	return l.printer.Sprintf(string(key), args...)
}
