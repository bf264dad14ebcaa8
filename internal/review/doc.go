// Package review drives the conversation that turns a diff into a structured
// code review.
//
// A [Conversation] builds the initial prompt (the diff, truncated per file
// when it exceeds the token budget, optionally followed by the full text of
// the changed files), then loops with a provider: every tool invocation the
// model asks for in one turn is dispatched concurrently and answered in a
// single user message. After MaxRounds tool rounds the tool catalog is
// withheld so the model has to answer.
//
// The final answer is expected to hold a fenced JSON block with critical,
// suggestions and positive findings. Output that does not follow that
// contract still yields a [Result], with low confidence.
//
// Rules files (rules.go) add focus areas and required checks to the prompt.
package review
