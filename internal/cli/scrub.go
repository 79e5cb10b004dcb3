package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/scene"
	"github.com/matzehuels/techmap/pkg/scheduler"
	"github.com/matzehuels/techmap/pkg/ticks"
)

// Terminal cell size in layout pixels.
const (
	cellW = 8.0
	cellH = 16.0
)

// scrubChrome is the rows taken by borders, titles, the slider and help.
const scrubChrome = 8

// scrubCommand creates the interactive year scrubber.
func (c *CLI) scrubCommand() *cobra.Command {
	var (
		flags   layoutFlags
		animate bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "scrub [dataset]",
		Short: "Step through years in the terminal",
		Long: `Step through years in the terminal.

Left and right change the year; both planes are laid out again at once.
Resizing the terminal resizes the plane boxes, coalesced to one layout per
frame. With --animate the active plane's force simulation settles on screen.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runScrub(cmd, argOrEmpty(args), &flags, animate, noCache)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&animate, "animate", false, "show the force simulation settling")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runScrub(cmd *cobra.Command, input string, flags *layoutFlags, animate, noCache bool) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ds, err := c.loadDataset(ctx, input)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	if len(ds.Years) == 0 {
		return errors.New(errors.ErrCodeInvalidDataset, "dataset has no years")
	}
	opts, err := c.options(cmd, flags, ds)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("animate") {
		opts.Active.Animate = animate
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	// The alternate screen owns the terminal.
	runner.Logger = log.NewWithOptions(io.Discard, log.Options{})
	opts.Logger = runner.Logger

	cfg, err := c.config()
	if err != nil {
		return err
	}

	var p *tea.Program
	presenter := scene.PresenterFunc(func(ctx context.Context, f scene.Frame) error {
		p.Send(frameMsg(f))
		return nil
	})
	sched := scheduler.New(runner, presenter, scheduler.Options{
		Clock: scheduler.NewFrameClock(cfg.Serve.FrameInterval),
	})

	m := newScrubModel(sched, ds.Years, opts.Year, opts.Theme.IsLight())
	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	go sched.Run(ctx)
	if err := sched.Init(ds, opts); err != nil {
		return err
	}

	final, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return err
	}
	if sm, ok := final.(scrubModel); ok && sm.err != nil {
		return sm.err
	}
	return nil
}

// =============================================================================
// scrubModel
// =============================================================================

// yearResizer is the part of the scheduler the model drives.
type yearResizer interface {
	SetYear(year int) error
	Resize(plane chip.Plane, w, h float64) error
}

// frameMsg carries a published plane frame into the update loop.
type frameMsg scene.Frame

// scrubModel is the bubbletea model of the scrubber.
type scrubModel struct {
	sched yearResizer
	years []int
	idx   int
	light bool

	width, height int
	views         map[chip.Plane]scene.PlaneView
	settled       map[chip.Plane]bool
	frames        int
	err           error
}

func newScrubModel(s yearResizer, years []int, year int, light bool) scrubModel {
	idx := slices.Index(years, year)
	if idx < 0 {
		idx = len(years) - 1
	}
	return scrubModel{
		sched:   s,
		years:   years,
		idx:     idx,
		light:   light,
		views:   map[chip.Plane]scene.PlaneView{},
		settled: map[chip.Plane]bool{},
	}
}

func (m scrubModel) Init() tea.Cmd {
	return nil
}

func (m scrubModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "left", "h":
			return m.seek(m.idx - 1)
		case "right", "l":
			return m.seek(m.idx + 1)
		case "home", "g":
			return m.seek(0)
		case "end", "G":
			return m.seek(len(m.years) - 1)
		case "t":
			m.light = !m.light
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		for _, p := range chip.Planes {
			cols, rows := m.planeCells(p)
			if cols < 4 || rows < 1 {
				continue
			}
			if err := m.sched.Resize(p, float64(cols)*cellW, float64(rows)*cellH); err != nil {
				m.err = err
				return m, tea.Quit
			}
		}

	case frameMsg:
		m.views[msg.Plane] = msg.View
		m.settled[msg.Plane] = msg.Final
		m.frames++
	}
	return m, nil
}

// seek moves to year index i and re-lays out both planes.
func (m scrubModel) seek(i int) (tea.Model, tea.Cmd) {
	i = max(0, min(len(m.years)-1, i))
	if i == m.idx {
		return m, nil
	}
	m.idx = i
	if err := m.sched.SetYear(m.years[i]); err != nil {
		m.err = err
		return m, tea.Quit
	}
	return m, nil
}

// planeCells returns the inner size of a plane box in cells. The active
// box gets the larger share of the height.
func (m scrubModel) planeCells(p chip.Plane) (cols, rows int) {
	cols = m.width - 4
	avail := m.height - scrubChrome
	active := avail * 11 / 20
	if p == chip.Active {
		return cols, active
	}
	return cols, avail - active
}

func (m scrubModel) View() string {
	if m.width == 0 {
		return "loading..."
	}
	var b strings.Builder

	for _, p := range chip.Planes {
		cols, rows := m.planeCells(p)
		if cols < 4 || rows < 1 {
			continue
		}
		style := StyleInactive
		if p == chip.Active {
			style = StyleActive
		}
		v := m.views[p]
		title := fmt.Sprintf("%s · %d chips", p, len(v.Chips))
		if !m.settled[p] && len(v.Chips) > 0 {
			title += " · settling"
		}
		body := StyleTitle.Render(title) + "\n" + drawPlane(v, cols, rows)
		b.WriteString(style.Width(cols + 2).Render(body))
		b.WriteString("\n")
	}

	b.WriteString(m.slider())
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("←/→: year  home/end: first/last  t: theme  q: quit"))
	return b.String()
}

// slider renders the year ticks with the current year highlighted.
func (m scrubModel) slider() string {
	ts := ticks.Labels(m.years, float64(m.width)*cellW, m.light)
	parts := make([]string, len(ts))
	for i, t := range ts {
		switch {
		case i == m.idx:
			parts[i] = lipgloss.NewStyle().Bold(true).Foreground(colorYellow).Render("[" + strconv.Itoa(t.Year) + "]")
		case t.Label:
			parts[i] = StyleDim.Render(strconv.Itoa(t.Year))
		default:
			parts[i] = StyleDim.Render("·")
		}
	}
	return " " + strings.Join(parts, " ")
}

// drawPlane places chip names on a cols×rows character grid. Chip
// positions scale from the plane's pixel region to cells.
func drawPlane(v scene.PlaneView, cols, rows int) string {
	grid := make([][]rune, rows)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", cols))
	}
	if v.Region.Width > 0 && v.Region.Height > 0 {
		for _, c := range v.Chips {
			row := int((c.Y + c.H/2) / v.Region.Height * float64(rows))
			col := int(c.X / v.Region.Width * float64(cols))
			if row < 0 || row >= rows || col < 0 || col >= cols {
				continue
			}
			name := []rune(c.Name)
			for i := 0; i < len(name) && col+i < cols; i++ {
				grid[row][col+i] = name[i]
			}
		}
	}
	lines := make([]string, rows)
	for i, r := range grid {
		lines[i] = string(r)
	}
	return strings.Join(lines, "\n")
}
