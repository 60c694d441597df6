package main

import (
	"context"
	"os"
	"strings"

	"cog-cli/internal/cli"

	"github.com/charmbracelet/fang"
)

var version = "dev"

// rewriteDirectOpenArgs lets `cog <location>` and `cog <series-id>` open the editor.
//
// Cobra treats the first non-flag token as a subcommand, so argv is rewritten before
// parsing. Persistent flags may come first, so the first positional token is found.
func rewriteDirectOpenArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--dir":       true,
		"--workspace": true,
		"--db-driver": true,
		"--dsn":       true,
		"--remote":    true,
		"--format":    true,
		"--log":       true,
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}

		var sub string
		switch {
		case strings.HasPrefix(a, "/tools/cog/"):
			sub = "open"
		case strings.HasPrefix(a, "ser-") && len(a) > len("ser-"):
			sub = "edit"
		default:
			return argv
		}
		out := make([]string, 0, len(argv)+1)
		out = append(out, argv[:i]...)
		out = append(out, sub)
		out = append(out, argv[i:]...)
		return out
	}

	return argv
}

func main() {
	os.Args = rewriteDirectOpenArgs(os.Args)

	if err := fang.Execute(
		context.Background(),
		cli.NewRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
