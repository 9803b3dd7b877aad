// Package tools holds the capability set a model may invoke during an
// orchestration run and the Dispatcher that routes tool uses to it.
//
// A tool that fails on bad arguments or a backend error answers with an
// error ToolResult so the model can recover. Only a tool name outside the
// registered set is fatal to the run.
package tools
