package prompt

import (
	_ "embed"
)

//go:embed templates/message_handler.md
var messageHandlerTemplate string

//go:embed templates/should_respond.md
var shouldRespondTemplate string

//go:embed templates/should_continue.md
var shouldContinueTemplate string

// Completion footers appended to rendered templates. They instruct the
// model how to shape its reply so the parsers in this package can read it.
const (
	// MessageCompletionFooter asks for a fenced JSON block with the
	// reply text and chosen action.
	MessageCompletionFooter = "\nResponse format should be formatted in a JSON block like this:\n```json\n{ \"user\": \"{{agentName}}\", \"text\": \"string\", \"action\": \"string\" }\n```"

	// ShouldRespondFooter asks for one of [RESPOND], [IGNORE] or [STOP].
	ShouldRespondFooter = "The available options are [RESPOND], [IGNORE], or [STOP]. Choose the most appropriate option.\nIf {{agentName}} is talking too much, you can choose [IGNORE]\n\nYour response must include one of the options."

	// BooleanFooter asks for a bare YES or NO.
	BooleanFooter = "Respond with only a YES or a NO."
)

// MessageHandlerTemplate returns the template used to generate the
// agent's reply, preferring the character override when set.
func MessageHandlerTemplate(override string) string {
	if override != "" {
		return override
	}
	return messageHandlerTemplate + MessageCompletionFooter
}

// ShouldRespondTemplate returns the template used to decide whether the
// agent should reply at all.
func ShouldRespondTemplate(override string) string {
	if override != "" {
		return override
	}
	return shouldRespondTemplate + "\n" + ShouldRespondFooter
}

// ShouldContinueTemplate returns the template used by the CONTINUE
// action to decide whether the agent should keep talking.
func ShouldContinueTemplate(override string) string {
	if override != "" {
		return override
	}
	return shouldContinueTemplate + BooleanFooter
}
