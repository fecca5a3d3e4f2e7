package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/boss-rush/pkg/encounter"
	"github.com/jwebster45206/boss-rush/pkg/ledger"
)

var titleCaser = cases.Title(language.English)

var (
	mainPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(3)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	bossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	choiceKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")). // teal
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	hpFullStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("76")) // green

	hpLowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	impactStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")). // bright yellow
			Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func (m ConsoleUI) panelWidths() (mainWidth, metaWidth int) {
	mainWidth = int(float64(m.width)*0.7) - 4
	metaWidth = m.width - mainWidth - 6
	return mainWidth, metaWidth
}

// refresh rebuilds the main panel content for the current width.
func (m *ConsoleUI) refresh() {
	if !m.ready {
		return
	}
	width := max(m.viewport.Width-4, 20)
	if m.snap.Phase == encounter.PhaseIdle {
		m.viewport.SetContent(m.renderSetup(width))
		return
	}
	m.viewport.SetContent(m.renderEncounter(width))
}

func (m ConsoleUI) renderSetup(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("BOSS RUSH") + "\n\n")
	b.WriteString(wordwrap.String(Tagline+". Each boss falls to the sustainable answers; the others hurt you.", width) + "\n\n")
	b.WriteString("Name:\n" + m.nameInput.View() + "\n\n")

	b.WriteString("Difficulty: ")
	for i, d := range difficulties {
		label := titleCaser.String(string(d))
		if i == m.difficulty {
			label = choiceKeyStyle.Render("[" + label + "]")
		} else {
			label = promptStyle.Render(" " + label + " ")
		}
		b.WriteString(label + " ")
	}
	b.WriteString("\n\n")
	b.WriteString(promptStyle.Render("Tab: difficulty  Enter: start  Esc: quit") + "\n")
	m.writeStatus(&b)
	return b.String()
}

func (m ConsoleUI) renderEncounter(width int) string {
	s := m.snap
	var b strings.Builder

	header := fmt.Sprintf("Boss %d of %d", s.BossIndex+1, max(s.RequiredWins, s.BossIndex+1))
	b.WriteString(titleStyle.Render(header) + "  ")
	b.WriteString(bossStyle.Render(s.Boss.Name))
	if s.Boss.Category != "" {
		b.WriteString(promptStyle.Render(" (" + titleCaser.String(s.Boss.Category) + ")"))
	}
	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	switch s.Phase {
	case encounter.PhaseVictory:
		b.WriteString(titleStyle.Render("VICTORY!") + "\n\n")
	case encounter.PhaseDefeat:
		b.WriteString(errorStyle.Render("DEFEATED") + "\n\n")
	}

	if s.Phase == encounter.PhaseRewardPending {
		b.WriteString(titleStyle.Render("Choose your reward:") + "\n\n")
		for i, r := range s.Rewards {
			line := fmt.Sprintf("%s %s %s", choiceKeyStyle.Render(fmt.Sprintf("%d)", i+1)), r.Icon, r.Name)
			b.WriteString(line + "\n")
			b.WriteString(promptStyle.Render(wordwrap.String(r.Description, width-4)) + "\n\n")
		}
	} else if !s.Phase.Terminal() {
		scene := s.Scene
		if s.Revealing {
			scene = s.Streaming
		}
		b.WriteString(narratorStyle.Render(wordwrap.String(scene, width)) + "\n\n")
		if !s.Revealing {
			for _, c := range s.Choices {
				b.WriteString(choiceKeyStyle.Render(c.ID+")") + " " + wordwrap.String(c.Text, width-4) + "\n")
			}
		}
	}

	if m.shown != "" {
		b.WriteString("\n" + wordwrap.String(m.shown, width) + "\n")
	}
	if s.Fact != "" {
		b.WriteString("\n" + promptStyle.Render(wordwrap.String("Did you know? "+s.Fact, width)) + "\n")
	}
	if s.Busy || s.Revealing {
		b.WriteString("\n" + m.renderProgressBar(width) + "\n")
	}
	m.writeStatus(&b)
	return b.String()
}

func (m ConsoleUI) writeStatus(b *strings.Builder) {
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	if m.notice != "" {
		b.WriteString("\n" + loadingStyle.Render(m.notice) + "\n")
	}
}

func (m ConsoleUI) renderMeta(width int) string {
	s := m.snap
	var b strings.Builder
	b.WriteString(titleStyle.Render("STATUS") + "\n\n")
	if s.Phase == encounter.PhaseIdle {
		b.WriteString("No game running.\n")
		return b.String()
	}

	b.WriteString(s.Player + promptStyle.Render(" ("+titleCaser.String(string(s.Difficulty))+")") + "\n\n")
	barWidth := max(width-10, 5)
	b.WriteString("You\n" + m.vitalsLine(hpBar(s.PlayerHP, s.MaxPlayerHP, barWidth), s.PlayerHP, s.MaxPlayerHP) + "\n")
	b.WriteString("Boss\n" + m.vitalsLine(hpBar(s.BossHP, s.MaxBossHP, barWidth), s.BossHP, s.MaxBossHP) + "\n\n")
	fmt.Fprintf(&b, "Wins: %d/%d\n\n", s.Wins, s.RequiredWins)

	b.WriteString("Items:\n")
	for i, item := range s.Items {
		b.WriteString(itemLine(i+1, item) + "\n")
	}
	b.WriteString("\n")

	if p := s.Passives; p.Shield > 0 || p.AttackBonus > 0 || p.CritChance > 0 {
		b.WriteString("Passives:\n")
		fmt.Fprintf(&b, "• Shield %d\n• Attack +%d\n• Crit %d%%\n\n", p.Shield, p.AttackBonus, p.CritChance)
	}

	if last := m.scheduler.Last(); last.Target > 0 {
		fmt.Fprintf(&b, "Scenes ready: %d/%d\n\n", last.QueueSize, last.Target)
	}

	b.WriteString("Commands:\n")
	switch s.Phase {
	case encounter.PhaseInTurn:
		b.WriteString("• A-D: Choose\n• 1-4: Use item\n• F: Fun fact\n• Y: Copy scene\n")
	case encounter.PhaseRewardPending:
		b.WriteString("• 1-3: Claim reward\n• F: Fun fact\n")
	}
	b.WriteString("• R: Restart\n• Esc: Quit\n")
	return b.String()
}

func (m ConsoleUI) vitalsLine(bar string, hp, maxHP int) string {
	line := fmt.Sprintf("%s %d/%d", bar, hp, maxHP)
	if m.impact {
		return impactStyle.Render(line)
	}
	return line
}

// hpBar draws hp as a bar of width cells. The bar turns red at a quarter.
func hpBar(hp, maxHP, width int) string {
	if maxHP <= 0 || width <= 0 {
		return ""
	}
	hp = min(max(hp, 0), maxHP)
	filled := hp * width / maxHP
	if hp > 0 && filled == 0 {
		filled = 1
	}
	style := hpFullStyle
	if hp*4 <= maxHP {
		style = hpLowStyle
	}
	return style.Render(strings.Repeat("█", filled)) + separatorStyle.Render(strings.Repeat("░", width-filled))
}

func itemLine(key int, item ledger.ItemView) string {
	var state string
	switch {
	case item.RemainingTurns > 0:
		state = fmt.Sprintf("active, %d turns", item.RemainingTurns)
	case item.Permanent:
		state = "active"
	default:
		state = fmt.Sprintf("x%d", item.Charges)
	}
	line := fmt.Sprintf("%d) %s (%s)", key, item.Name, state)
	if !item.Usable {
		return promptStyle.Render(line)
	}
	return line
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))
	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	mainWidth, metaWidth := m.panelWidths()
	mainPanel := mainPanelStyle.Width(mainWidth).Height(m.height - 2).Render(m.viewport.View())
	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(m.renderMeta(metaWidth))
	return lipgloss.JoinHorizontal(lipgloss.Top, mainPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar(usable int) string {
	usable = min(max(usable, 10), 80)

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := range usable {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}
