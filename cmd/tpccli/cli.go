package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
)

type CLI struct {
	client      *Client
	out         io.Writer
	rl          *readline.Instance
	running     bool
	tree        *CommandTree
	currentLine string
}

func NewCLI(client *Client, out io.Writer) *CLI {
	cli := &CLI{
		client:  client,
		out:     out,
		running: true,
		tree:    NewCommandTree(),
	}

	RegisterCommands(cli.tree)

	return cli
}

func (c *CLI) Run() error {
	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:              getPrompt(),
		HistoryFile:         os.ExpandEnv("$HOME/.tpccli_history"),
		AutoComplete:        c.buildCompleter(),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		FuncFilterInputRune: c.filterInputWithHelp,
		Listener:            c,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer c.rl.Close()

	c.out = c.rl.Stdout()
	c.printBanner()

	for c.running {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if err == io.EOF {
				break
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := c.processCommand(line); err != nil {
			fmt.Fprintf(c.rl.Stderr(), "Error: %v\n", err)
		}
	}

	return nil
}

func (c *CLI) Stop() {
	c.running = false
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *CLI) printBanner() {
	c.printf("=====================================\n")
	c.printf("    tpc Interactive CLI\n")
	c.printf("=====================================\n")
	c.printf("Connected to: %s\n", c.client.BaseURL())
	c.printf("Type 'help' for available commands\n")
	c.printf("Type 'exit' to exit\n\n")
}

func (c *CLI) OnChange(line []rune, pos int, key rune) (newLine []rune, newPos int, ok bool) {
	c.currentLine = string(line)
	return nil, 0, false
}

func (c *CLI) filterInputWithHelp(r rune) (rune, bool) {
	if r == '?' {
		c.printf("?\n")
		c.showInlineHelp(c.currentLine)
		c.rl.Write([]byte(c.currentLine))
		return 0, false
	}
	return filterInput(r)
}

func (c *CLI) showInlineHelp(input string) {
	if strings.HasSuffix(input, " ") || input == "" {
		c.tree.ShowHelp(c.out, strings.TrimSpace(input))
		return
	}

	completions := c.tree.GetCompletions(input)
	if len(completions) == 0 {
		c.tree.ShowHelp(c.out, input)
		return
	}
	c.printf("\n")
	for _, comp := range completions {
		c.printf("  %s\n", comp)
	}
	c.printf("\n")
}

func (c *CLI) processCommand(line string) error {
	if line == "quit" {
		c.running = false
		return nil
	}

	if strings.HasSuffix(line, "?") {
		c.showInlineHelp(strings.TrimSuffix(line, "?"))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return c.tree.Execute(ctx, c, line)
}
