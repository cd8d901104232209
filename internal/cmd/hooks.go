package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent-autonomy-kit/watchdog/internal/hooks"
	"github.com/agent-autonomy-kit/watchdog/internal/style"
)

type hooksListing struct {
	ConfigFile string                                 `json:"configFile" yaml:"configFile"`
	Hooks      map[hooks.EventType][]hooks.HookConfig `json:"hooks" yaml:"hooks"`
	Builtins   []string                               `json:"builtins" yaml:"builtins"`
}

func newHooksCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hooks",
		Short: "List configured hooks and available builtins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := hooks.NewHookRunner(o.workDir)
			if err != nil {
				return err
			}

			listing := hooksListing{
				ConfigFile: hooks.ConfigFile,
				Hooks:      make(map[hooks.EventType][]hooks.HookConfig),
				Builtins:   hooks.GetBuiltinNames(),
			}
			for _, ev := range hooks.AllEventTypes {
				if runner.HasHooks(ev) {
					listing.Hooks[ev] = runner.GetHooks(ev)
				}
			}

			return render(cmd.OutOrStdout(), o.format, listing, func(w io.Writer) error {
				if len(listing.Hooks) == 0 {
					fmt.Fprintf(w, "No hooks configured in %s.\n", hooks.ConfigFile)
				}
				for _, ev := range hooks.AllEventTypes {
					for _, h := range listing.Hooks[ev] {
						target := h.Cmd
						if h.Type == hooks.HookTypeBuiltin {
							target = h.Builtin
						}
						fmt.Fprintf(w, "%-18s %-8s %s\n", style.Bold.Render(string(ev)), h.Type, target)
					}
				}
				_, err := fmt.Fprintf(w, "Builtins: %s\n", strings.Join(listing.Builtins, ", "))
				return err
			})
		},
	}
}
