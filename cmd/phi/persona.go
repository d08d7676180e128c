package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"phi.ai/agent-console/internal/app"
	"phi.ai/agent-console/internal/core"
	"phi.ai/agent-console/internal/phiapi"
)

const (
	itemBack     = "← back"
	itemContinue = "continue →"
	itemSubmit   = "submit persona"
	itemQuit     = "quit"
)

func newPersonaCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Create or update your persona with the step-by-step wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.Sessions.Start(ctx, a.Config.DefaultUserID, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Sessions.End(context.Background(), session.ID) }()
			return runWizard(ctx, a, session.ID)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored persona",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Phi.GetPersona(ctx, a.Config.DefaultUserID)
			if phiapi.IsNotFound(err) {
				fmt.Println(yellow("No persona stored for " + a.Config.DefaultUserID))
				return nil
			}
			if err != nil {
				return err
			}
			printPersona(p)
			return nil
		},
	})
	return cmd
}

func runWizard(ctx context.Context, a *app.App, sessionID string) error {
	wiz, err := a.Sessions.Wizard(ctx, sessionID)
	if err != nil {
		return err
	}

	for !wiz.Complete() {
		step := wiz.Step()
		fmt.Println(bold(fmt.Sprintf("Step %d/%d: %s", int(step)+1, len(core.Steps), step)))

		var err error
		switch {
		case step == core.StepDomains:
			err = domainsStep(ctx, wiz)
		case step.MultiSelect():
			err = multiSelectStep(wiz, step)
		default:
			err = singleSelectStep(wiz, step)
		}
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, errQuit) {
			return errors.New("persona wizard cancelled")
		}
		if err != nil {
			return err
		}
	}
	fmt.Println(green("Persona saved. Switching to the conversation."))
	return nil
}

var errQuit = errors.New("quit")

func singleSelectStep(wiz *core.Wizard, step core.Step) error {
	items := step.Options()
	if step != core.StepRisk {
		items = append(items, itemBack)
	}
	cursor := 0
	if current := wiz.Selection(step); len(current) == 1 {
		cursor = max(slices.Index(items, current[0]), 0)
	}

	prompt := promptui.Select{Label: "Choose " + step.String(), Items: items, CursorPos: cursor}
	_, choice, err := prompt.Run()
	if err != nil {
		return err
	}
	if choice == itemBack {
		return wiz.Back()
	}
	if err := wiz.Select(choice); err != nil {
		return err
	}
	return wiz.Continue()
}

func multiSelectStep(wiz *core.Wizard, step core.Step) error {
	for {
		selected := wiz.Selection(step)
		items := make([]string, 0, len(step.Options())+2)
		for _, option := range step.Options() {
			mark := "[ ] "
			if slices.Contains(selected, option) {
				mark = "[x] "
			}
			items = append(items, mark+option)
		}
		items = append(items, itemContinue, itemBack)

		prompt := promptui.Select{Label: "Toggle " + step.String(), Items: items, Size: len(items)}
		_, choice, err := prompt.Run()
		if err != nil {
			return err
		}
		switch choice {
		case itemBack:
			return wiz.Back()
		case itemContinue:
			if err := wiz.Continue(); errors.Is(err, core.ErrSelectionRequired) {
				fmt.Println(red("Pick at least one " + step.String() + " option."))
				continue
			} else if err != nil {
				return err
			}
			return nil
		default:
			if err := wiz.Toggle(choice[len("[ ] "):]); err != nil {
				return err
			}
		}
	}
}

func domainsStep(ctx context.Context, wiz *core.Wizard) error {
	fmt.Println(gray("Suggestions: " + strings.Join(core.StepDomains.Options(), ", ")))
	prompt := promptui.Prompt{
		Label:     "Domains (comma separated)",
		Default:   strings.Join(wiz.Selection(core.StepDomains), ", "),
		AllowEdit: true,
		Validate: func(input string) error {
			for _, part := range strings.Split(input, ",") {
				if strings.TrimSpace(part) != "" {
					return nil
				}
			}
			return errors.New("enter at least one domain")
		},
	}
	input, err := prompt.Run()
	if err != nil {
		return err
	}
	if err := wiz.Select(strings.Split(input, ",")...); err != nil {
		return err
	}

	draft := wiz.Draft()
	fmt.Println(bold("Review:"))
	printDraft(draft)
	for {
		confirm := promptui.Select{Label: "Ready?", Items: []string{itemSubmit, itemBack, itemQuit}}
		_, choice, err := confirm.Run()
		if err != nil {
			return err
		}
		switch choice {
		case itemBack:
			return wiz.Back()
		case itemQuit:
			return errQuit
		}

		if _, err := wiz.Finish(ctx); err != nil {
			fmt.Println(red("Could not save persona: " + err.Error()))
			if wiz.Complete() {
				return nil
			}
			continue
		}
		return nil
	}
}

func printDraft(d phiapi.PersonaUpdate) {
	fmt.Printf("  %s %s\n", cyan("risk:"), d.RiskTolerance)
	fmt.Printf("  %s %s\n", cyan("markets:"), strings.Join(d.Markets, ", "))
	fmt.Printf("  %s %s\n", cyan("horizon:"), d.Horizon)
	fmt.Printf("  %s %s\n", cyan("domains:"), strings.Join(d.DomainTags, ", "))
}

func printPersona(p *phiapi.Persona) {
	fmt.Println(bold("Persona for " + p.UserID))
	printDraft(phiapi.PersonaUpdate{
		UserID:        p.UserID,
		RiskTolerance: p.RiskTolerance,
		Markets:       p.Markets,
		Horizon:       p.Horizon,
		DomainTags:    p.DomainTags,
	})
	if p.UpdatedAt != "" {
		fmt.Println(gray("  updated " + p.UpdatedAt))
	}
}
