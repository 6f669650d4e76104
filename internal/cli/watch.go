package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/npmunifier/pkg/runner"
)

// maxWatchLines bounds the output kept by the watch view.
const maxWatchLines = 500

var (
	watchRunningStyle = lipgloss.NewStyle().Foreground(colorCyan)
	watchOKStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	watchFailStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

// process is the part of a detached command the watch view controls.
type process interface {
	Wait() (int, error)
	Kill() error
}

type (
	outputLineMsg string
	outputDoneMsg struct{}
	exitMsg       struct {
		code int
		err  error
	}
)

// watchModel is the bubbletea model showing the tail of a detached command's
// combined output until it exits.
type watchModel struct {
	title   string
	proc    process
	lines   *bufio.Scanner
	tail    []string
	height  int
	started time.Time
	elapsed time.Duration

	killed bool
	done   bool
	code   int
	err    error
}

func newWatchModel(title string, out io.Reader, proc process) watchModel {
	sc := bufio.NewScanner(out)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return watchModel{
		title:   title,
		proc:    proc,
		lines:   sc,
		height:  20,
		started: time.Now(),
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.next()
}

// next reads one line of output.
func (m watchModel) next() tea.Cmd {
	sc := m.lines
	return func() tea.Msg {
		if sc.Scan() {
			return outputLineMsg(sc.Text())
		}
		return outputDoneMsg{}
	}
}

func (m watchModel) wait() tea.Cmd {
	p := m.proc
	return func() tea.Msg {
		code, err := p.Wait()
		return exitMsg{code: code, err: err}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case outputLineMsg:
		m.tail = append(m.tail, string(msg))
		if len(m.tail) > maxWatchLines {
			m.tail = m.tail[len(m.tail)-maxWatchLines:]
		}
		return m, m.next()
	case outputDoneMsg:
		return m, m.wait()
	case exitMsg:
		m.done = true
		m.code, m.err = msg.code, msg.err
		m.elapsed = time.Since(m.started).Round(time.Millisecond)
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.killed && !m.done {
				m.killed = true
				_ = m.proc.Kill()
			}
		}
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-4, 3)
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.title))
	b.WriteString("  ")
	b.WriteString(m.status())
	b.WriteString("\n\n")

	start := max(len(m.tail)-m.height, 0)
	for _, line := range m.tail[start:] {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if !m.done {
		b.WriteString("\n")
		b.WriteString(StyleDim.Render("q kill"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m watchModel) status() string {
	switch {
	case !m.done && m.killed:
		return watchFailStyle.Render("killing…")
	case !m.done:
		return watchRunningStyle.Render("running")
	case m.err != nil:
		return watchFailStyle.Render("failed")
	case m.code != 0:
		return watchFailStyle.Render(fmt.Sprintf("exit %d", m.code))
	}
	return watchOKStyle.Render("done")
}

// watchHandle shows a detached command in a live view and returns its exit
// status once it finishes.
func watchHandle(ctx context.Context, h *runner.Handle) (int, error) {
	title := strings.Join(h.Argv(), " ")
	model := newWatchModel(title, h.Output(), h)

	final, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		_ = h.Kill()
		if code, werr := h.Wait(); werr != nil {
			return code, werr
		}
		return -1, err
	}

	wm := final.(watchModel)
	if wm.err != nil {
		return wm.code, wm.err
	}
	if wm.code == 0 {
		printSuccess("%s finished in %s", title, wm.elapsed)
	} else {
		printError("%s exited with status %d", title, wm.code)
	}
	return wm.code, nil
}
