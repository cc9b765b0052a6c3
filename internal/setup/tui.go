package setup

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgstars/giftsniper/config"
	"github.com/tgstars/giftsniper/internal/entity"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and persists the result
// through the given store.
func RunTUI(store *config.Store) error {
	var (
		recipientKind string
		recipientUser string
		recipientChan string
		targets       []config.Target
		confirm       bool
	)

	// step 1: welcome + recipient
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("GIFT SNIPER CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's set up your gift hunt.\n"))

	fmt.Println(stepStyle.Render("STEP 1: RECIPIENT"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Who receives the gifts?").
				Options(
					huh.NewOption("A user (by numeric id)", "user"),
					huh.NewOption("A channel (by @username)", "channel"),
				).
				Value(&recipientKind),
		),
	).Run()
	if err != nil {
		return err
	}

	if recipientKind == "user" {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Recipient User ID").
					Description("Numeric Telegram user id (e.g. 123456789)").
					Value(&recipientUser).
					Validate(validateUserID),
			),
		).Run()
	} else {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Recipient Channel").
					Description("Channel username with or without @ (e.g. @mychannel)").
					Value(&recipientChan).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("channel cannot be empty")
						}
						return nil
					}),
			),
		).Run()
	}
	if err != nil {
		return err
	}

	// step 2: targets
	for {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("GIFT SNIPER CONFIG WIZARD"))
		fmt.Println(stepStyle.Render(fmt.Sprintf("STEP 2: TARGET #%d", len(targets)+1)))

		var (
			giftIDStr   string
			name        string
			maxPriceStr string
			enabled     = true
			addMore     bool
		)

		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Gift ID").
					Description("Collectible gift id (at least 10 digits)").
					Value(&giftIDStr).
					Validate(func(s string) error {
						_, err := entity.ValidateGiftID(s)
						return err
					}),
				huh.NewInput().
					Title("Display Name").
					Description("Label used in logs and notifications").
					Value(&name).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("name cannot be empty")
						}
						return nil
					}),
				huh.NewInput().
					Title("Max Price (stars)").
					Description("Purchase ceiling for this gift (e.g. 500)").
					Value(&maxPriceStr).
					Validate(validatePrice),
				huh.NewConfirm().
					Title("Enable this target?").
					Value(&enabled),
			),
		).Run()
		if err != nil {
			return err
		}

		giftID, _ := entity.ValidateGiftID(giftIDStr)
		maxPrice, _ := strconv.ParseInt(maxPriceStr, 10, 64)
		targets = append(targets, config.Target{
			GiftID:   giftID,
			Name:     name,
			MaxPrice: maxPrice,
			Enabled:  enabled,
		})

		err = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Add another target?").
					Value(&addMore),
			),
		).Run()
		if err != nil {
			return err
		}
		if !addMore {
			break
		}
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GIFT SNIPER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	recipient := recipientChan
	if recipientKind == "user" {
		recipient = "user " + recipientUser
	}
	summary := fmt.Sprintf("Recipient: %s\nTargets: %d\n", recipient, len(targets))
	for i, t := range targets {
		state := "enabled"
		if !t.Enabled {
			state = "disabled"
		}
		summary += fmt.Sprintf("  %d. %s (gift %d, up to ★%d, %s)\n", i+1, t.Name, t.GiftID, t.MaxPrice, state)
	}
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	err = store.Update(func(c *config.Config) {
		c.Targets = targets
		if recipientKind == "user" {
			c.RecipientUserID, _ = strconv.ParseInt(recipientUser, 10, 64)
			c.RecipientChannel = ""
		} else {
			c.RecipientChannel = recipientChan
			c.RecipientUserID = 0
		}
	})
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render("\n✓ Configuration saved"))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validateUserID(s string) error {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if id <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validatePrice(s string) error {
	p, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if p <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
