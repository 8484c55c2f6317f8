// Package openai generates narration scripts, synthesized speech, and
// publishing metadata through the OpenAI chat and speech APIs.
//
// Metadata is requested as a JSON object; replies that are not valid JSON
// are parsed as free text so a run still gets a title.
package openai
