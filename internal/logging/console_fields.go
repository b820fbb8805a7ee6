package logging

import (
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type infoField struct {
	label string
	value string
}

const infoAttrLimit = 8

// infoHighlightKeys are rendered first, in this order.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldErrorKind,
	"error",
	FieldErrorHint,
	FieldImpact,
	"url",
	"status",
	"platform",
	"media_type",
	"format",
	"pages",
	"attempt",
	"elapsed",
}

// selectInfoFields returns formatted info-level fields and a count of hidden
// entries. limit=0 means no limit.
func selectInfoFields(attrs []kv, limit int, includeDebug bool) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	used := make([]bool, len(attrs))
	result := make([]infoField, 0, infoAttrLimit)
	hidden := 0

	consider := func(idx int) {
		used[idx] = true
		attr := attrs[idx]
		if skipInfoKey(attr.key) {
			return
		}
		if !includeDebug && isDebugOnlyKey(attr.key) {
			hidden++
			return
		}
		val := formatValueForKey(attr.key, attr.value)
		if !includeDebug && len(val) > 160 && attr.key != "error" {
			hidden++
			return
		}
		if limit > 0 && len(result) >= limit {
			hidden++
			return
		}
		result = append(result, infoField{label: displayLabel(attr.key), value: val})
	}

	for _, key := range infoHighlightKeys {
		for idx, attr := range attrs {
			if !used[idx] && attr.key == key {
				consider(idx)
				break
			}
		}
	}
	for idx := range attrs {
		if !used[idx] {
			consider(idx)
		}
	}
	return result, hidden
}

// formatValueForKey renders byte sizes and durations for people.
func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()
	switch {
	case isByteSizeKey(key) && v.Kind() == slog.KindInt64 && v.Int64() >= 0:
		return humanize.IBytes(uint64(v.Int64()))
	case isByteSizeKey(key) && v.Kind() == slog.KindUint64:
		return humanize.IBytes(v.Uint64())
	case v.Kind() == slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case v.Kind() == slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	}
	value := formatValue(v)
	if key == "error" && len(value) > 240 {
		value = value[:240] + "…"
	}
	return value
}

func isByteSizeKey(key string) bool {
	return strings.HasSuffix(key, "_bytes") || key == "size"
}

func skipInfoKey(key string) bool {
	switch key {
	case "", FieldComponent, FieldBrandID, FieldAssetID, FieldStage:
		return true
	}
	return false
}

func isDebugOnlyKey(key string) bool {
	if key == FieldCorrelationID {
		return true
	}
	return strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir") || strings.HasSuffix(key, "_ref")
}

func displayLabel(key string) string {
	switch key {
	case FieldAlert:
		return "Alert"
	case FieldEventType:
		return "Event"
	case FieldErrorKind:
		return "Error Kind"
	case FieldErrorHint:
		return "Hint"
	case "url":
		return "URL"
	}
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
	}
	return strings.Join(parts, " ")
}
