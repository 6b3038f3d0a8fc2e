package cli

import (
	"strings"

	"github.com/chzyer/readline"

	"github.com/nexthop-io/dhcpd/pkg/config"
)

// setPathCompleter drives readline's tab completion for "set"/"delete"
// lines in configuration mode, using the same schema CompleteSetPath
// uses to validate and apply commands, so what completes is always
// exactly what the store would accept.
type setPathCompleter struct {
	cli *CLI
}

// Do implements readline.AutoCompleter. It tokenizes everything before
// the cursor with the configuration lexer (so a quoted host-name like
// "office router" completes correctly even though it contains a space)
// and offers completions for the partial word at the cursor.
func (a *setPathCompleter) Do(line []rune, pos int) ([][]rune, int) {
	if !a.cli.store.InConfigMode() {
		return nil, 0
	}

	text := string(line[:pos])
	head, partial := splitLastWord(text)

	tokens := lexTokens(head)
	if len(tokens) > 0 {
		switch tokens[0] {
		case "set", "delete", "activate", "deactivate":
			tokens = tokens[1:]
		}
	}

	completions := config.CompleteSetPathWithValues(tokens, a.cli.valueProvider())
	var result [][]rune
	for _, c := range completions {
		if strings.HasPrefix(c, partial) {
			result = append(result, []rune(c[len(partial):]+" "))
		}
	}
	return result, len([]rune(partial))
}

// splitLastWord separates text into everything before the last
// whitespace-delimited word (head) and that word itself (partial). A
// trailing space means the cursor sits on a fresh, empty word.
func splitLastWord(text string) (head, partial string) {
	if text == "" || strings.HasSuffix(text, " ") {
		return text, ""
	}
	idx := strings.LastIndexByte(text, ' ')
	if idx < 0 {
		return "", text
	}
	return text[:idx+1], text[idx+1:]
}

// lexTokens runs the configuration lexer over input and returns every
// identifier/string token's value, ignoring structural tokens that
// never appear in a one-line "set"/"delete" command.
func lexTokens(input string) []string {
	var toks []string
	for _, t := range config.NewLexer(input).Tokens() {
		if t.Type == config.TokenIdentifier || t.Type == config.TokenString {
			toks = append(toks, t.Value)
		}
	}
	return toks
}

// valueProvider supplies live interface names and subnet CIDRs for
// schema positions that expect a dynamic value, drawn from the running
// manager's configuration so completion reflects what's actually
// committed, not just what the schema shape allows.
func (c *CLI) valueProvider() config.ValueProvider {
	return func(hint config.ValueHint) []string {
		if c.mgr == nil {
			return nil
		}
		switch hint {
		case config.ValueHintInterfaceName:
			var names []string
			seen := make(map[string]bool)
			for _, sub := range c.mgr.Config().Subnets {
				if !seen[sub.Interface.Name] {
					seen[sub.Interface.Name] = true
					names = append(names, sub.Interface.Name)
				}
			}
			return names
		case config.ValueHintSubnetCIDR:
			var cidrs []string
			for _, sub := range c.mgr.Config().Subnets {
				cidrs = append(cidrs, sub.Network.String())
			}
			return cidrs
		default:
			return nil
		}
	}
}

var _ readline.AutoCompleter = (*setPathCompleter)(nil)
