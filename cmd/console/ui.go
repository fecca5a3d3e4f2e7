package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/boss-rush/pkg/api"
	"github.com/jwebster45206/boss-rush/pkg/encounter"
	"github.com/jwebster45206/boss-rush/pkg/ledger"
	"github.com/jwebster45206/boss-rush/pkg/prefetch"
)

var difficulties = []api.Difficulty{api.DifficultyEasy, api.DifficultyMedium, api.DifficultyHard}

// turnSteps paces a resolved turn: the vitals flash first, the narrator's
// message lands after.
var turnSteps = encounter.Steps{
	{Name: "impact"},
	{Name: "message", Delay: 600 * time.Millisecond},
}

// bridge lets background commands reach the running program.
type bridge struct {
	program *tea.Program
}

func (b *bridge) send(msg tea.Msg) {
	if b.program != nil {
		b.program.Send(msg)
	}
}

// ConsoleUI is the BubbleTea model that runs the game.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	machine   *encounter.Machine
	scheduler *prefetch.Scheduler
	updates   <-chan encounter.Snapshot
	bridge    *bridge

	snap       encounter.Snapshot
	nameInput  textinput.Model
	difficulty int
	viewport   viewport.Model

	ready  bool
	width  int
	height int
	err    error
	notice string

	// Pacing of the last turn's reveal.
	paceSeq     uint64
	lastMessage string
	shown       string
	impact      bool

	showQuitModal bool
	progressTick  int
}

type snapshotMsg encounter.Snapshot

type dispatchedMsg struct {
	err error
}

type stepMsg struct {
	seq  uint64
	step string
}

type copiedMsg struct {
	err error
}

type progressTickMsg struct{}

func NewConsoleUI(machine *encounter.Machine, scheduler *prefetch.Scheduler, name string, difficulty api.Difficulty) ConsoleUI {
	ti := textinput.New()
	ti.Placeholder = "Your name"
	ti.Prompt = promptStyle.Render(":: ")
	ti.CharLimit = 32
	ti.SetValue(name)
	ti.Focus()

	level := 1
	for i, d := range difficulties {
		if d == difficulty {
			level = i
		}
	}

	return ConsoleUI{
		machine:    machine,
		scheduler:  scheduler,
		updates:    machine.Subscribe(),
		bridge:     &bridge{},
		nameInput:  ti,
		difficulty: level,
		viewport:   viewport.New(60, 20),
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForSnapshot())
}

func (m ConsoleUI) waitForSnapshot() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

// dispatch runs an intent off the UI goroutine. The machine publishes every
// state change, so only the error comes back here.
func (m ConsoleUI) dispatch(in encounter.Intent) tea.Cmd {
	machine := m.machine
	return func() tea.Msg {
		return dispatchedMsg{err: machine.Dispatch(context.Background(), in)}
	}
}

func (m ConsoleUI) pace(seq uint64) tea.Cmd {
	b := m.bridge
	return func() tea.Msg {
		_ = turnSteps.Play(context.Background(), func(_ int, st encounter.Step) {
			b.send(stepMsg{seq: seq, step: st.Name})
		})
		return nil
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		mainWidth, _ := m.panelWidths()
		m.viewport.Width = mainWidth - 2
		m.viewport.Height = m.height - 6
		m.nameInput.Width = mainWidth - 10
		m.ready = true
		m.refresh()
		return m, nil

	case snapshotMsg:
		wasBusy := m.snap.Busy
		m.snap = encounter.Snapshot(msg)
		cmds = append(cmds, m.waitForSnapshot())
		if m.snap.Busy && !wasBusy {
			m.progressTick = 0
			cmds = append(cmds, progressTick())
		}
		if m.snap.Message != m.lastMessage {
			m.lastMessage = m.snap.Message
			m.paceSeq++
			m.shown = ""
			if m.snap.Message != "" {
				cmds = append(cmds, m.pace(m.paceSeq))
			}
		}
		if m.snap.Phase == encounter.PhaseIdle {
			m.nameInput.Focus()
		} else {
			m.nameInput.Blur()
		}
		m.refresh()
		return m, tea.Batch(cmds...)

	case stepMsg:
		if msg.seq != m.paceSeq {
			return m, nil
		}
		switch msg.step {
		case "impact":
			m.impact = true
		case "message":
			m.impact = false
			m.shown = m.lastMessage
		}
		m.refresh()
		return m, nil

	case dispatchedMsg:
		m.err = msg.err
		if msg.err != nil && errors.Is(msg.err, ledger.ErrPending) {
			m.err = nil
		}
		m.refresh()
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("copy failed: %w", msg.err)
		} else {
			m.notice = "Scene copied to clipboard."
		}
		m.refresh()
		return m, nil

	case progressTickMsg:
		if m.snap.Busy || m.snap.Revealing {
			m.progressTick++
			m.refresh()
			return m, progressTick()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.showQuitModal = true
		return m, nil
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	m.err = nil
	m.notice = ""

	if m.snap.Phase == encounter.PhaseIdle {
		return m.handleSetupKey(msg)
	}

	key := strings.ToLower(msg.String())
	switch m.snap.Phase {
	case encounter.PhaseInTurn:
		switch key {
		case "a", "b", "c", "d":
			return m, m.dispatch(encounter.Choose{ID: strings.ToUpper(key)})
		case "1", "2", "3", "4":
			return m, m.dispatch(encounter.UseItem{Item: api.Items[key[0]-'1']})
		case "f":
			return m, m.dispatch(encounter.LoadFact{})
		case "y":
			return m, copyScene(m.snap)
		}
	case encounter.PhaseRewardPending:
		if len(key) == 1 && key[0] >= '1' && int(key[0]-'1') < len(m.snap.Rewards) {
			return m, m.dispatch(encounter.ClaimReward{ID: m.snap.Rewards[key[0]-'1'].ID})
		}
		if key == "f" {
			return m, m.dispatch(encounter.LoadFact{})
		}
	}
	if key == "r" {
		return m, m.dispatch(encounter.Restart{})
	}
	return m, nil
}

// handleSetupKey edits the player name; tab cycles the difficulty and enter
// starts the run.
func (m ConsoleUI) handleSetupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab:
		m.difficulty = (m.difficulty + 1) % len(difficulties)
		m.refresh()
		return m, nil
	case tea.KeyShiftTab:
		m.difficulty = (m.difficulty + len(difficulties) - 1) % len(difficulties)
		m.refresh()
		return m, nil
	case tea.KeyEnter:
		return m, m.dispatch(encounter.Start{
			Player:     m.nameInput.Value(),
			Difficulty: difficulties[m.difficulty],
		})
	}
	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	m.refresh()
	return m, cmd
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if snap, ok := msg.(snapshotMsg); ok {
			m.snap = encounter.Snapshot(snap)
			return m, m.waitForSnapshot()
		}
		return m, nil
	}
	switch strings.ToLower(key.String()) {
	case "y", "ctrl+c":
		return m, tea.Quit
	case "n", "esc":
		m.showQuitModal = false
	}
	return m, nil
}

func copyScene(s encounter.Snapshot) tea.Cmd {
	text := sceneText(s)
	return func() tea.Msg {
		return copiedMsg{err: clipboard.WriteAll(text)}
	}
}

// sceneText is the plain-text scene and its choices.
func sceneText(s encounter.Snapshot) string {
	var b strings.Builder
	b.WriteString(s.Scene)
	b.WriteString("\n\n")
	for _, c := range s.Choices {
		fmt.Fprintf(&b, "%s) %s\n", c.ID, c.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
