package airtable

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind discriminates the closed set of field value shapes Airtable returns.
// The shape is decided once here, at the JSON boundary, so downstream code
// never probes object properties.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindString
	KindNumber
	KindAttachment
	KindCollaborator
	KindList
	KindOpaque
)

// Value is one cell value from an Airtable record.
type Value struct {
	Kind  Kind
	Bool  bool
	Str   string
	Num   float64
	URL   string  // attachment
	Name  string  // collaborator
	Email string  // collaborator
	Items []Value // list elements
	Raw   any     // opaque fallback, JSON-stringified on display
}

// isoMillisUTC matches the strict ISO-8601 millisecond UTC form Airtable
// uses for date fields, e.g. 2024-01-15T09:30:00.000Z.
var isoMillisUTC = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)

const isoMillisLayout = "2006-01-02T15:04:05.000Z"

// CellLayout is the canonical spreadsheet cell form for timestamps.
const CellLayout = "2006-01-02 15:04:05"

// DecodeValue classifies a raw JSON-decoded field value into the tagged
// union. It is total: anything unrecognized becomes KindOpaque.
func DecodeValue(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{Kind: KindNull}
	case bool:
		return Value{Kind: KindBool, Bool: v}
	case string:
		return Value{Kind: KindString, Str: v}
	case float64:
		return Value{Kind: KindNumber, Num: v}
	case []any:
		items := make([]Value, 0, len(v))
		for _, el := range v {
			items = append(items, DecodeValue(el))
		}
		return Value{Kind: KindList, Items: items}
	case map[string]any:
		if url, ok := v["url"].(string); ok {
			return Value{Kind: KindAttachment, URL: url, Raw: v}
		}
		if name, ok := v["name"].(string); ok {
			return Value{Kind: KindCollaborator, Name: name, Raw: v}
		}
		if email, ok := v["email"].(string); ok {
			return Value{Kind: KindCollaborator, Email: email, Raw: v}
		}
		return Value{Kind: KindOpaque, Raw: v}
	default:
		return Value{Kind: KindOpaque, Raw: v}
	}
}

// Display renders the value as a flat spreadsheet cell string. It is a
// total function: unexpected shapes fall back to JSON or "[Object]".
func (v Value) Display(loc *time.Location) string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		// Sheet-compatible boolean, not the language literal
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindString:
		return displayString(v.Str, loc)
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindAttachment:
		return v.URL
	case KindCollaborator:
		if v.Name != "" {
			return v.Name
		}
		return v.Email
	case KindList:
		return displayList(v.Items, loc)
	default:
		return opaqueString(v.Raw)
	}
}

func displayList(items []Value, loc *time.Location) string {
	if len(items) == 0 {
		return ""
	}
	// An attachment list joins URLs with ", "; any other list joins
	// element renderings with ","
	if items[0].Kind == KindAttachment {
		urls := make([]string, 0, len(items))
		for _, it := range items {
			urls = append(urls, it.URL)
		}
		return strings.Join(urls, ", ")
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.Display(loc))
	}
	return strings.Join(parts, ",")
}

func displayString(s string, loc *time.Location) string {
	if !isoMillisUTC.MatchString(s) {
		return s
	}
	t, err := time.Parse(isoMillisLayout, s)
	if err != nil {
		log.Warn().Str("value", s).Err(err).Msg("Date formatting failed, keeping original string")
		return s
	}
	return t.In(loc).Format(CellLayout)
}

func opaqueString(raw any) string {
	b, err := json.Marshal(raw)
	if err != nil {
		return "[Object]"
	}
	return string(b)
}

// Display strings for debugging and error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindAttachment:
		return "attachment"
	case KindCollaborator:
		return "collaborator"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("opaque(%d)", int(k))
	}
}
