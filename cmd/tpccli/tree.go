package main

import (
	"context"
	"fmt"
	"io"
	"strings"
)

type CommandHandler func(ctx context.Context, cli *CLI, args []string) error

// Argument is a positional value. Values, when set, feed completion.
type Argument struct {
	Name        string
	Description string
	Values      []string
}

type CommandNode struct {
	Name        string
	Description string
	Handler     CommandHandler
	Children    []*CommandNode
	Arguments   []*Argument
}

type CommandTree struct {
	root *CommandNode
}

func NewCommandTree() *CommandTree {
	return &CommandTree{root: &CommandNode{Name: "root"}}
}

func (t *CommandTree) AddCommand(path []string, description string, handler CommandHandler, args ...*Argument) {
	current := t.root

	for i, part := range path {
		next := current.child(part)
		if next == nil {
			next = &CommandNode{Name: part}
			current.Children = append(current.Children, next)
		}
		if i == len(path)-1 {
			next.Description = description
			next.Handler = handler
			next.Arguments = args
		}
		current = next
	}
}

func (n *CommandNode) child(name string) *CommandNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// walk follows tokens down the tree and returns the deepest node reached and
// how many tokens it consumed.
func (t *CommandTree) walk(tokens []string) (*CommandNode, int) {
	current := t.root
	for i, token := range tokens {
		next := current.child(token)
		if next == nil {
			return current, i
		}
		current = next
	}
	return current, len(tokens)
}

func (t *CommandTree) Execute(ctx context.Context, cli *CLI, input string) error {
	tokens := strings.Fields(input)
	if len(tokens) == 0 {
		return nil
	}

	node, depth := t.walk(tokens)
	if node == t.root {
		return fmt.Errorf("unrecognized command %q", tokens[0])
	}
	if node.Handler == nil {
		return fmt.Errorf("incomplete command")
	}

	args := tokens[depth:]
	if err := validateArguments(node, args); err != nil {
		return err
	}
	return node.Handler(ctx, cli, args)
}

func validateArguments(cmd *CommandNode, args []string) error {
	if len(args) == len(cmd.Arguments) {
		return nil
	}

	names := make([]string, 0, len(cmd.Arguments))
	for _, arg := range cmd.Arguments {
		names = append(names, "<"+arg.Name+">")
	}
	if len(names) == 0 {
		return fmt.Errorf("%s takes no arguments", cmd.Name)
	}
	return fmt.Errorf("usage: %s %s", cmd.Name, strings.Join(names, " "))
}

func (t *CommandTree) GetCompletions(input string) []string {
	tokens := strings.Fields(input)
	endsWithSpace := len(input) > 0 && input[len(input)-1] == ' '

	prefix := ""
	if !endsWithSpace && len(tokens) > 0 {
		prefix = tokens[len(tokens)-1]
		tokens = tokens[:len(tokens)-1]
	}

	node, depth := t.walk(tokens)
	var completions []string

	if depth == len(tokens) {
		for _, child := range node.Children {
			if strings.HasPrefix(child.Name, prefix) {
				completions = append(completions, child.Name)
			}
		}
	}

	argIndex := len(tokens) - depth
	if node.Handler != nil && argIndex < len(node.Arguments) {
		for _, v := range node.Arguments[argIndex].Values {
			if strings.HasPrefix(v, prefix) {
				completions = append(completions, v)
			}
		}
	}

	return completions
}

func (t *CommandTree) ShowHelp(w io.Writer, input string) {
	tokens := strings.Fields(input)
	node, depth := t.walk(tokens)

	if len(node.Children) > 0 {
		fmt.Fprintln(w)
		for _, child := range node.Children {
			fmt.Fprintf(w, "  %-20s %s\n", child.usage(), child.Description)
		}
		fmt.Fprintln(w)
		return
	}

	argIndex := len(tokens) - depth
	if node.Handler != nil && argIndex < len(node.Arguments) {
		arg := node.Arguments[argIndex]
		fmt.Fprintf(w, "\n  <%s>%s %s\n\n", arg.Name, strings.Repeat(" ", max(1, 19-len(arg.Name))), arg.Description)
		return
	}

	fmt.Fprintln(w, "\n  <cr>")
}

func (n *CommandNode) usage() string {
	if len(n.Children) > 0 {
		return n.Name + " ..."
	}
	return n.Name
}
