// Package conversation models the message history exchanged with a model
// during one orchestration run.
//
// Message content is a closed sum type. A [Content] is either [Text] or
// [Blocks], and every [Block] is one of [TextBlock], [ToolUse] or
// [ToolResult]. Consumers switch on the concrete type.
//
// A [Conversation] only grows. Append rejects tool results that do not
// answer an earlier tool use, so a history decoded from a client can be
// trusted by the provider adapters.
package conversation
