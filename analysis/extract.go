package analysis

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

// ParseFailureMessage is the error text of a record built from an
// unparseable response.
const ParseFailureMessage = "Failed to parse AI response"

const fence = "```"

// candidate is the outcome of one locating strategy.
type candidate struct {
	text  string
	found bool
}

type strategy struct {
	name   string
	locate func(response string) candidate
}

// strategies are tried in order; the first one that finds a candidate wins
// even if that candidate then fails to parse.
var strategies = []strategy{
	{name: "json fence", locate: fenced(fence + "json")},
	{name: "fence", locate: fenced(fence)},
	{name: "bare", locate: func(response string) candidate {
		return candidate{text: response, found: true}
	}},
}

// fenced takes the text between the first opening marker and the next
// closing fence. An unterminated block runs to the end of the response.
func fenced(open string) func(string) candidate {
	return func(response string) candidate {
		i := strings.Index(response, open)
		if i < 0 {
			return candidate{}
		}
		body := response[i+len(open):]
		if j := strings.Index(body, fence); j >= 0 {
			body = body[:j]
		}
		return candidate{text: strings.TrimSpace(body), found: true}
	}
}

// locate returns the JSON candidate and the name of the strategy that found it.
func locate(response string) (string, string) {
	for _, s := range strategies {
		if c := s.locate(response); c.found {
			return c.text, s.name
		}
	}
	return response, "bare"
}

// Extract finds the JSON object in a model response. It never fails: a
// response that does not hold a JSON object gives the failure shape with the
// response kept verbatim.
func Extract(response string) Record {
	rec, _ := extract(response)
	return rec
}

// extract also reports whether an object was found, so a model object that
// happens to carry an "error" key is not mistaken for a failure.
func extract(response string) (Record, bool) {
	text, source := locate(response)

	var rec Record
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		log.Warn().Err(err).Str("strategy", source).Msg("Model responded with invalid JSON")
		return Failure(ParseFailureMessage, response), false
	}
	return rec, true
}
