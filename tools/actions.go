package tools

import (
	"context"

	"github.com/martinemde/goalagent/agent"
)

// Tags attached to the built-in actions.
const (
	TagFileOperations = "file_operations"
	TagRead           = "read"
	TagWrite          = "write"
	TagList           = "list"
	TagSystem         = "system"
)

type readArgs struct {
	Name string `json:"name" jsonschema:"description=The name of the file to read" validate:"required"`
}

type writeArgs struct {
	Name    string `json:"name" jsonschema:"description=The name of the file to write" validate:"required"`
	Content string `json:"content" jsonschema:"description=The text content to write to the file"`
}

type listArgs struct{}

type terminateArgs struct {
	Message string `json:"message" jsonschema:"description=The final message to return before terminating" validate:"required"`
}

// ReadProjectFile returns an action that reads a file from ws.
func ReadProjectFile(ws *Workspace) *agent.Action {
	return agent.NewTypedAction("read_project_file",
		"Reads and returns the content of a specified project file.",
		func(ctx context.Context, args readArgs) (any, error) {
			return ws.ReadFile(args.Name)
		})
}

// WriteProjectFile returns an action that writes a file into ws.
func WriteProjectFile(ws *Workspace) *agent.Action {
	return agent.NewTypedAction("write_project_file",
		"Writes the text content to a file in the project directory.",
		func(ctx context.Context, args writeArgs) (any, error) {
			return nil, ws.WriteFile(args.Name, args.Content)
		})
}

// ListProjectFiles returns an action that lists the project files in ws.
func ListProjectFiles(ws *Workspace) *agent.Action {
	return agent.NewTypedAction("list_project_files",
		"Lists all project files in the project directory, sorted by name.",
		func(ctx context.Context, _ listArgs) (any, error) {
			return ws.ListFiles()
		})
}

// Terminate returns the terminal action that ends a run with a final message.
func Terminate() *agent.Action {
	return agent.NewTypedAction("terminate",
		"Terminates the agent's execution with a final message.",
		func(ctx context.Context, args terminateArgs) (any, error) {
			return args.Message + "\nTerminating...", nil
		},
		agent.AsTerminal())
}

// Entries returns the built-in actions with their tags, ready for
// agent.NewRegistryFrom.
func Entries(ws *Workspace) []agent.RegistryEntry {
	return []agent.RegistryEntry{
		{Action: ReadProjectFile(ws), Tags: []string{TagFileOperations, TagRead}},
		{Action: WriteProjectFile(ws), Tags: []string{TagFileOperations, TagWrite}},
		{Action: ListProjectFiles(ws), Tags: []string{TagFileOperations, TagList}},
		{Action: Terminate(), Tags: []string{TagSystem}},
	}
}
