package main

import (
	"github.com/chzyer/readline"
)

func (c *CLI) buildCompleter() readline.AutoCompleter {
	return &treeCompleter{tree: c.tree}
}

type treeCompleter struct {
	tree *CommandTree
}

func (tc *treeCompleter) Do(line []rune, pos int) (newLine [][]rune, length int) {
	input := string(line[:pos])
	completions := tc.tree.GetCompletions(input)

	if len(completions) == 0 {
		return nil, 0
	}

	lastSpace := -1
	for i := pos - 1; i >= 0; i-- {
		if line[i] == ' ' {
			lastSpace = i
			break
		}
	}

	partialWord := string(line[lastSpace+1 : pos])

	result := make([][]rune, len(completions))
	for i, c := range completions {
		result[i] = []rune(c[len(partialWord):] + " ")
	}

	return result, len(partialWord)
}

func filterInput(r rune) (rune, bool) {
	switch r {
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func getPrompt() string {
	return "tpc> "
}
