// Package prompts holds the system prompt templates used by the LLM stages.
package prompts

import _ "embed"

//go:embed brief.txt
var Brief string

//go:embed messaging.txt
var Messaging string

//go:embed sitemap.txt
var Sitemap string

//go:embed research.txt
var Research string
