package stream

import "github.com/tidwall/gjson"

// extractor returns the text delta carried by one decoded event, or "" when
// the event has none at the path it knows about.
type extractor func(event gjson.Result) string

// stringAt reads a string at path. Non-string values yield "".
func stringAt(path string) extractor {
	return func(event gjson.Result) string {
		v := event.Get(path)
		if v.Type != gjson.String {
			return ""
		}
		return v.String()
	}
}

// firstTextIn reads the text of the first item of the array at path.
func firstTextIn(path string) extractor {
	return func(event gjson.Result) string {
		arr := event.Get(path)
		if !arr.IsArray() {
			return ""
		}
		v := arr.Get("0.text")
		if v.Type != gjson.String {
			return ""
		}
		return v.String()
	}
}

// extractors are tried in order; the first non-empty result wins. Different
// upstream shapes surface the delta at different paths.
var extractors = []extractor{
	stringAt("output_text"),
	stringAt("delta.output_text"),
	firstTextIn("content"),
	stringAt("choices.0.delta.content"),
	firstTextIn("choices.0.delta.content"),
	stringAt("choices.0.message.content"),
	firstTextIn("choices.0.message.content"),
	stringAt("choices.0.text"),
}

// ExtractDelta returns the text delta of a decoded event, or "" when no
// known path carries text.
func ExtractDelta(event gjson.Result) string {
	for _, extract := range extractors {
		if text := extract(event); text != "" {
			return text
		}
	}
	return ""
}
