package commands

import "strings"

// Command is one slash command offered by the chat compose box.
type Command struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Usage       string   `json:"usage"`
	Examples    []string `json:"examples"`
}

var Registry = []Command{
	{
		Name:        "/help",
		Description: "Show all available commands",
		Usage:       "/help",
		Examples:    []string{"/help"},
	},
	{
		Name:        "/status",
		Description: "Show system status, uptime, and agent health",
		Usage:       "/status",
		Examples:    []string{"/status"},
	},
	{
		Name:        "/agents",
		Description: "List all agents with their current status and model",
		Usage:       "/agents",
		Examples:    []string{"/agents"},
	},
	{
		Name:        "/cost",
		Description: "Show current session cost and token usage",
		Usage:       "/cost [period]",
		Examples:    []string{"/cost", "/cost today", "/cost week"},
	},
	{
		Name:        "/memory",
		Description: "Search or browse agent memories",
		Usage:       "/memory [search query]",
		Examples:    []string{"/memory", "/memory recent"},
	},
	{
		Name:        "/projects",
		Description: "List active projects and their status",
		Usage:       "/projects",
		Examples:    []string{"/projects"},
	},
	{
		Name:        "/task",
		Description: "Create a new task or list tasks",
		Usage:       "/task [create <title>] | /task list",
		Examples:    []string{"/task list", "/task create Fix mobile layout"},
	},
	{
		Name:        "/research",
		Description: "Run a research query through the pipeline",
		Usage:       "/research <query>",
		Examples:    []string{"/research competitor analysis"},
	},
	{
		Name:        "/email",
		Description: "Check email inbox or send an email",
		Usage:       "/email [inbox|send <to> <subject>]",
		Examples:    []string{"/email inbox", "/email unread"},
	},
	{
		Name:        "/clear",
		Description: "Clear the current chat thread",
		Usage:       "/clear",
		Examples:    []string{"/clear"},
	},
}

// Match returns the commands the current input could complete to: name
// prefix matches plus description substring matches. Empty unless the input
// starts with a slash.
func Match(input string) []Command {
	if !strings.HasPrefix(input, "/") {
		return nil
	}
	query := strings.ToLower(input)
	var matched []Command
	for _, cmd := range Registry {
		if strings.HasPrefix(cmd.Name, query) ||
			strings.Contains(strings.ToLower(cmd.Description), query[1:]) {
			matched = append(matched, cmd)
		}
	}
	return matched
}
