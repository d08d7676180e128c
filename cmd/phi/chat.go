package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"phi.ai/agent-console/internal/app"
	"phi.ai/agent-console/internal/phiapi"
	"phi.ai/agent-console/internal/store"
)

func newChatCommand(opts *rootOptions) *cobra.Command {
	var skipPersona bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask for predictions in an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.Sessions.Start(ctx, a.Config.DefaultUserID, opts.pinnedSeed())
			if err != nil {
				return err
			}
			defer func() { _ = a.Sessions.End(context.Background(), session.ID) }()

			if !skipPersona {
				if _, err := a.Phi.GetPersona(ctx, session.UserID); phiapi.IsNotFound(err) {
					fmt.Println(yellow("No persona found for " + session.UserID + ". Let's create one first."))
					if err := runWizard(ctx, a, session.ID); err != nil {
						return err
					}
				} else if err != nil {
					fmt.Println(yellow("Could not check persona: " + err.Error()))
				}
			}
			return runChat(ctx, a, session)
		},
	}
	cmd.Flags().BoolVar(&skipPersona, "skip-persona", false, "do not check for an existing persona")
	return cmd
}

func runChat(ctx context.Context, a *app.App, session *store.Session) error {
	conv, err := a.Sessions.Conversation(ctx, session.ID)
	if err != nil {
		return err
	}
	history, err := conv.History(ctx)
	if err != nil {
		return err
	}
	for _, msg := range history {
		if msg.Role == store.RoleSystem {
			fmt.Println(cyan(msg.Content))
		}
	}
	fmt.Println(gray("Type 'exit' or press Ctrl+D to quit. Speech: " + a.Speech.Backend()))
	fmt.Println()

	homeDir, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "you › ",
		HistoryFile:       filepath.Join(homeDir, ".phi-history"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             readline.NewCancelableStdin(os.Stdin),
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	// Plain text is printed when no renderer can be built.
	renderer, _ := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))

	for {
		input, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(input) == 0 {
				break
			}
			continue
		} else if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "exit" || input == "quit" || input == "q" {
			break
		}
		if input == "" {
			continue
		}

		fmt.Println(gray("thinking…"))
		turn, err := conv.HandleSend(ctx, input)
		if err != nil {
			fmt.Println(red("Error: " + err.Error()))
			continue
		}
		fmt.Println(render(renderer, turn.AssistantMessage.Content))
		if turn.Err != nil {
			fmt.Println(gray(turn.Err.Error()))
		}
	}
	fmt.Println("Goodbye!")
	return nil
}

func render(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

