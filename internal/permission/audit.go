package permission

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/agentrun-ai/agentrun/internal/logging"
)

// ShellCommand is one parsed command from a Bash tool invocation.
type ShellCommand struct {
	Name string
	Args []string
}

// ParseShellCommands parses a shell command line into its individual
// commands. Pipelines, lists, and substitutions all contribute entries.
func ParseShellCommands(command string) ([]ShellCommand, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, err
	}

	var commands []ShellCommand
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok {
			if cmd := extractCall(call); cmd != nil {
				commands = append(commands, *cmd)
			}
		}
		return true
	})
	return commands, nil
}

func extractCall(call *syntax.CallExpr) *ShellCommand {
	if len(call.Args) == 0 {
		return nil
	}

	cmd := &ShellCommand{Name: wordToString(call.Args[0])}
	if cmd.Name == "" {
		return nil
	}
	for _, arg := range call.Args[1:] {
		cmd.Args = append(cmd.Args, wordToString(arg))
	}
	return cmd
}

func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			// Dynamic content; keep a marker rather than the expansion.
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

// auditBash logs the individual commands of a Bash tool call. Parse failures
// are ignored; the audit trail is best effort and never affects the decision.
func auditBash(input map[string]any) {
	raw, ok := input["command"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}

	commands, err := ParseShellCommands(raw)
	if err != nil {
		log := logging.Component("arbiter")
		log.Debug().
			Err(err).
			Msg("shell audit parse failed")
		return
	}

	names := make([]string, 0, len(commands))
	for _, c := range commands {
		names = append(names, c.Name)
	}
	log := logging.Component("arbiter")
	log.Debug().
		Strs("commands", names).
		Msg("shell invocation")
}
