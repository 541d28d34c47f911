package cmds

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/bookwright/pkg/assistant"
	"github.com/go-go-golems/bookwright/pkg/config"
	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/go-go-golems/bookwright/pkg/transcript"
	"github.com/go-go-golems/bookwright/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Fill in a book card together with the assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.FromViper(viper.GetViper())
			if err != nil {
				return err
			}
			formFile, _ := cmd.Flags().GetString("form")
			initial, err := loadForm(formFile, settings.Fields)
			if err != nil {
				return err
			}

			bus := ui.NewBus()
			tr := transcript.New(transcript.WithOnChange(bus.Changed))
			form := fields.NewMemory(initial, fields.WithOnChange(func(name string, v fields.Value) {
				bus.Changed()
			}))

			c := assistant.New(
				settings.AssistantConfig(),
				config.NewViperCredentialStore(viper.GetViper()),
				tr,
				form,
				assistant.WithScheduler(settings.Scheduler()),
				assistant.WithNotifier(bus),
				assistant.WithTurnFinished(func(r assistant.TurnResult) {
					log.Debug().Str("turn_id", r.Turn.ID).Err(r.Err).Msg("Turn finished")
				}),
			)
			defer c.Close()

			var options []tea.ProgramOption
			// stdin may be a pipe, keys then come from the controlling terminal
			if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
				options = append(options, tea.WithInputTTY())
			}

			m := ui.NewModel(c, tr, form, settings.Fields, bus)
			return ui.Run(cmd.Context(), m, options...)
		},
	}
	cmd.Flags().String("form", "", "YAML file with the initial book card")
	return cmd
}
