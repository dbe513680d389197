package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agentic-storywriter/agent"
	"agentic-storywriter/story"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1).
			Width(80)

	errorStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#EF4444")).
			Padding(1).
			MarginBottom(1)

	faintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// StepStatus tracks one pipeline step in the progress list.
type StepStatus struct {
	label     string
	step      story.Step
	iteration int
	status    string // "waiting", "started", "completed", "error"
	message   string
	degraded  bool
	spinner   spinner.Model
	startTime time.Time
	endTime   time.Time
}

type storyModel struct {
	ctx          context.Context
	workflow     *story.Workflow
	tracker      *agent.UsageTracker
	progressChan chan story.ProgressUpdate

	userInput    string
	steps        []StepStatus
	status       string
	isProcessing bool
	finished     bool
	result       *story.Story
	err          error

	viewport viewport.Model
	ready    bool
}

type storyCompleteMsg struct {
	story *story.Story
	err   error
}

type progressUpdateMsg struct {
	update story.ProgressUpdate
}

func newStepStatus(label string, step story.Step, iteration int) StepStatus {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	return StepStatus{
		label:     label,
		step:      step,
		iteration: iteration,
		status:    "waiting",
		message:   "Waiting to start...",
		spinner:   s,
	}
}

func initialStoryModel(ctx context.Context, w *story.Workflow, tracker *agent.UsageTracker, progress chan story.ProgressUpdate, concept string) storyModel {
	steps := []StepStatus{
		newStepStatus(agent.OutlineAgentName, story.StepOutline, 0),
		newStepStatus(agent.DraftAgentName+" (write)", story.StepDraft, 0),
	}
	for i := 1; i <= w.MaxIterations(); i++ {
		steps = append(steps,
			newStepStatus(fmt.Sprintf("%s (round %d)", agent.CritiqueAgentName, i), story.StepCritique, i),
			newStepStatus(fmt.Sprintf("%s (revise %d)", agent.DraftAgentName, i), story.StepRevise, i),
		)
	}

	return storyModel{
		ctx:          ctx,
		workflow:     w,
		tracker:      tracker,
		progressChan: progress,
		userInput:    concept,
		steps:        steps,
		status:       "Edit the story concept and press Enter to begin...",
	}
}

func (m storyModel) Init() tea.Cmd {
	return nil
}

func (m storyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.YPosition = 1
			m.ready = true
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		if m.finished {
			m.viewport.SetContent(m.renderContent())
		}

	case tea.KeyMsg:
		if m.finished {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "home", "g":
				m.viewport.GotoTop()
			case "end", "G":
				m.viewport.GotoBottom()
			default:
				var cmd tea.Cmd
				m.viewport, cmd = m.viewport.Update(msg)
				cmds = append(cmds, cmd)
			}
			break
		}

		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			if !m.isProcessing && strings.TrimSpace(m.userInput) != "" {
				return m.startStoryCreation()
			}
		case "backspace", "ctrl+h":
			if len(m.userInput) > 0 && !m.isProcessing {
				runes := []rune(m.userInput)
				m.userInput = string(runes[:len(runes)-1])
			}
		default:
			if !m.isProcessing && msg.Type == tea.KeyRunes {
				m.userInput += string(msg.Runes)
			} else if !m.isProcessing && msg.Type == tea.KeySpace {
				m.userInput += " "
			}
		}

	case progressUpdateMsg:
		for i := range m.steps {
			s := &m.steps[i]
			if s.step != msg.update.Step || s.iteration != msg.update.Iteration {
				continue
			}
			s.status = msg.update.Status
			if msg.update.Message != "" {
				s.message = msg.update.Message
			}
			switch msg.update.Status {
			case story.StatusStarted:
				s.startTime = time.Now()
				cmds = append(cmds, s.spinner.Tick)
			case story.StatusCompleted:
				s.endTime = time.Now()
				s.degraded = msg.update.Err != nil
			case story.StatusError:
				s.endTime = time.Now()
				if msg.update.Err != nil {
					s.message = msg.update.Err.Error()
				}
			}
			break
		}
		if m.isProcessing {
			cmds = append(cmds, m.listenForProgress())
		}

	case spinner.TickMsg:
		if m.isProcessing {
			for i := range m.steps {
				if m.steps[i].status == story.StatusStarted {
					var cmd tea.Cmd
					m.steps[i].spinner, cmd = m.steps[i].spinner.Update(msg)
					if cmd != nil {
						cmds = append(cmds, cmd)
					}
				}
			}
		}

	case storyCompleteMsg:
		m.isProcessing = false
		m.finished = true
		m.result = msg.story
		m.err = msg.err
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.status = "Story complete!"
		}
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}
	}

	return m, tea.Batch(cmds...)
}

// listenForProgress waits for the next update from the running workflow.
func (m storyModel) listenForProgress() tea.Cmd {
	ch := m.progressChan
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return nil
		}
		return progressUpdateMsg{update: update}
	}
}

func (m storyModel) startStoryCreation() (tea.Model, tea.Cmd) {
	m.isProcessing = true
	m.status = "Creating your story... This may take several minutes."

	w := m.workflow
	ctx := m.ctx
	concept := m.userInput
	return m, tea.Batch(
		func() tea.Msg {
			s, err := w.Run(ctx, concept)
			return storyCompleteMsg{story: s, err: err}
		},
		m.listenForProgress(),
	)
}

func (m storyModel) View() string {
	if m.finished && m.ready {
		header := titleStyle.Render("Agentic Storywriter")
		footer := "\n" + lipgloss.NewStyle().Faint(true).Render("↑/↓: scroll • q/ctrl+c: quit • g/G: top/bottom • pgup/pgdn: page up/down")
		return header + "\n" + m.viewport.View() + footer
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("Agentic Storywriter"))
	s.WriteString("\n\n")

	if !m.isProcessing && !m.finished {
		s.WriteString("Story concept:\n\n")
		s.WriteString(inputStyle.Render(m.userInput + "│"))
		s.WriteString("\n\nPress Enter to start, or Ctrl+C to quit\n")
	}

	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).MarginTop(1)
	if m.isProcessing {
		statusStyle = statusStyle.Foreground(lipgloss.Color("#04B575"))
	}
	if m.err != nil {
		statusStyle = statusStyle.Foreground(lipgloss.Color("#FF5F87"))
	}
	s.WriteString("\n")
	s.WriteString(statusStyle.Render(m.status))

	if m.isProcessing {
		s.WriteString("\n\n")
		s.WriteString(m.renderUsage())
		s.WriteString("\n\n")
		for _, step := range m.steps {
			s.WriteString(renderStep(step))
		}
	}
	return s.String()
}

func (m storyModel) renderUsage() string {
	total := m.tracker.Total()
	costStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	tokenStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	return costStyle.Render(fmt.Sprintf("Estimated cost: $%.4f", total.Cost)) + "  " +
		tokenStyle.Render(fmt.Sprintf("Tokens: %s", formatNumber(total.TotalTokens)))
}

func renderStep(step StepStatus) string {
	var icon string
	var color lipgloss.Color

	switch step.status {
	case story.StatusStarted:
		icon = step.spinner.View()
		color = lipgloss.Color("#7D56F4")
	case story.StatusCompleted:
		icon = "✓"
		color = lipgloss.Color("#04B575")
		if step.degraded {
			icon = "!"
			color = lipgloss.Color("#F59E0B")
		}
	case story.StatusError:
		icon = "✗"
		color = lipgloss.Color("#FF5F87")
	default:
		icon = "·"
		color = lipgloss.Color("#626262")
	}

	style := lipgloss.NewStyle().Foreground(color)
	line := fmt.Sprintf("%s %s - %s", icon, style.Render(step.label), style.Render(step.message))
	if !step.endTime.IsZero() {
		line += faintStyle.Render(fmt.Sprintf(" (%v)", step.endTime.Sub(step.startTime).Round(time.Second)))
	}
	return line + "\n"
}

// renderContent renders the finished story, or the error, for the viewport.
func (m storyModel) renderContent() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Story run failed\nError: %s", m.err.Error()))
	}
	if m.result == nil {
		return ""
	}

	var output string
	if m.result.Degraded {
		output += errorStyle.Render("One or more providers returned an error; the story may contain error reports.") + "\n"
	}

	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	rendered, err := renderMarkdown(m.result.Text, width)
	if err != nil {
		output += errorStyle.Render(fmt.Sprintf("Failed to render markdown: %v", err)) + "\n"
		return output + m.result.Text
	}
	return output + rendered
}

// formatNumber formats a number with commas for better readability
func formatNumber(n int) string {
	str := strconv.Itoa(n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	for i, digit := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	return result.String()
}
