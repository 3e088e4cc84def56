package selection

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tbarbosa/gitcv/internal/types"
)

// defaultPickCount is how many of the top-ranked repositories an empty
// answer selects.
const defaultPickCount = 5

// State is the controller's position in the checkpoint flow.
type State int

const (
	StatePresenting State = iota
	StateAwaitingChoice
	StateResolvingManualAdds
	StateFrozen
)

func (s State) String() string {
	switch s {
	case StatePresenting:
		return "presenting"
	case StateAwaitingChoice:
		return "awaiting-choice"
	case StateResolvingManualAdds:
		return "resolving-manual-adds"
	case StateFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Outcome is the result of one checkpoint run. Exactly one of Aborted and
// Result is meaningful: a user cancel sets Aborted and leaves Result nil.
type Outcome struct {
	Aborted bool
	Result  *types.SelectionResult
}

// Controller drives the checkpoint. A controller runs once: after Run
// returns, the state is frozen and further calls fail.
type Controller struct {
	prompter Prompter
	out      io.Writer
	log      *zap.Logger
	state    State
}

// NewController returns a controller in the presenting state. A nil out
// writes to stdout.
func NewController(prompter Prompter, out io.Writer, log *zap.Logger) *Controller {
	if out == nil {
		out = os.Stdout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		prompter: prompter,
		out:      out,
		log:      log,
		state:    StatePresenting,
	}
}

// State reports the controller's current state.
func (c *Controller) State() State {
	return c.state
}

const (
	menuLooksGood = iota
	menuAddManual
	menuStartOver
	menuCancel
)

var menuItems = []string{
	"Looks good, continue",
	"Add a project manually",
	"Start over",
	"Cancel",
}

// Run presents ranked, walks the user through choosing, and returns the
// frozen outcome. A cancel or interrupt produces an aborted outcome, not
// an error.
func (c *Controller) Run(ranked []types.RankedRepository) (*Outcome, error) {
	if c.state != StatePresenting {
		return nil, &Error{Message: fmt.Sprintf("selection already ran; state is %s", c.state)}
	}

	outcome, err := c.interact(ranked)
	c.transition(StateFrozen)
	if errors.Is(err, ErrAborted) {
		c.log.Info("selection aborted by user")
		return &Outcome{Aborted: true}, nil
	}
	if err != nil {
		return nil, err
	}
	c.log.Info("selection frozen",
		zap.Int("chosen", len(outcome.Result.Chosen)),
		zap.Int("manual", len(outcome.Result.ManuallyAdded)))
	return outcome, nil
}

func (c *Controller) interact(ranked []types.RankedRepository) (*Outcome, error) {
	for {
		c.present(ranked)
		c.transition(StateAwaitingChoice)

		chosen, err := c.askPicks(ranked)
		if err != nil {
			return nil, err
		}

		var manual []types.ManualRepository
		startOver := false
		for !startOver {
			c.printSelection(chosen, manual)

			choice, err := c.prompter.Select("Next step", menuItems)
			if err != nil {
				return nil, err
			}

			switch choice {
			case menuLooksGood:
				return &Outcome{Result: &types.SelectionResult{
					Chosen:        chosen,
					ManuallyAdded: manual,
				}}, nil
			case menuAddManual:
				c.transition(StateResolvingManualAdds)
				adds, err := c.askManualAdds()
				if err != nil {
					return nil, err
				}
				manual = append(manual, adds...)
				c.transition(StateAwaitingChoice)
			case menuStartOver:
				startOver = true
			case menuCancel:
				return nil, ErrAborted
			default:
				return nil, &Error{Message: fmt.Sprintf("unexpected menu choice %d", choice)}
			}
		}
	}
}

// present lists the ranked repositories with a relevance bar so the pick
// numbers have something to refer to.
func (c *Controller) present(ranked []types.RankedRepository) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Repositories ranked by relevance to the job:")
	for i, r := range ranked {
		fmt.Fprintf(c.out, "  %2d. %s  %s (%s)\n", i+1, starBar(relevanceStars(r.Rank, len(ranked))), r.Name, r.URL)
		if r.Rationale != "" {
			fmt.Fprintf(c.out, "      %s\n", r.Rationale)
		}
	}
	if len(ranked) == 0 {
		fmt.Fprintln(c.out, "  (no repositories were collected)")
	}
}

func (c *Controller) printSelection(chosen []types.Repository, manual []types.ManualRepository) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Current selection:")
	for i, r := range chosen {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, r.Name)
	}
	for _, m := range manual {
		fmt.Fprintf(c.out, "   + %s (added manually)\n", m.Name)
	}
	if len(chosen)+len(manual) == 0 {
		fmt.Fprintln(c.out, "  (nothing selected)")
	}
}

func (c *Controller) askPicks(ranked []types.RankedRepository) ([]types.Repository, error) {
	n := len(ranked)
	count := n
	if count > defaultPickCount {
		count = defaultPickCount
	}
	label := fmt.Sprintf("Repositories to feature, in order (e.g. 1,3,5; empty keeps the top %d)", count)

	answer, err := c.prompter.Input(label, func(s string) error {
		_, err := parsePicks(s, n)
		return err
	})
	if err != nil {
		return nil, err
	}

	picks, err := parsePicks(answer, n)
	if err != nil {
		return nil, &Error{Message: "prompter returned an unvalidated answer", Cause: err}
	}

	chosen := make([]types.Repository, 0, len(picks))
	for _, p := range picks {
		chosen = append(chosen, ranked[p-1].Repository)
	}
	return chosen, nil
}

// askManualAdds collects user-supplied projects. Each needs a name and at
// least one of URL and description; a project without a URL gets a
// synthetic identity so later stages can still reference it.
func (c *Controller) askManualAdds() ([]types.ManualRepository, error) {
	var adds []types.ManualRepository
	for {
		name, err := c.prompter.Input("Project name", func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("a name is required")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		rawURL, err := c.prompter.Input("Project URL (leave empty if none)", nil)
		if err != nil {
			return nil, err
		}
		rawURL = strings.TrimSpace(rawURL)

		descLabel := "Short description"
		if rawURL != "" {
			descLabel += " (optional)"
		}
		desc, err := c.prompter.Input(descLabel, func(s string) error {
			if rawURL == "" && strings.TrimSpace(s) == "" {
				return fmt.Errorf("a URL or a description is required")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		add := types.ManualRepository{
			ID:          rawURL,
			Name:        strings.TrimSpace(name),
			URL:         rawURL,
			Description: strings.TrimSpace(desc),
		}
		if add.URL == "" {
			add.ID = "manual:" + uuid.NewString()
		}
		adds = append(adds, add)

		more, err := c.prompter.Confirm("Add another project")
		if err != nil {
			return nil, err
		}
		if !more {
			return adds, nil
		}
	}
}

func (c *Controller) transition(next State) {
	if next == c.state {
		return
	}
	c.log.Debug("selection state change",
		zap.String("from", c.state.String()),
		zap.String("to", next.String()))
	c.state = next
}

// parsePicks parses a comma-separated pick list into 1-based indexes,
// preserving the order typed. An empty answer selects the top entries.
func parsePicks(s string, n int) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		count := n
		if count > defaultPickCount {
			count = defaultPickCount
		}
		picks := make([]int, 0, count)
		for i := 1; i <= count; i++ {
			picks = append(picks, i)
		}
		return picks, nil
	}

	parts := strings.Split(s, ",")
	picks := make([]int, 0, len(parts))
	seen := make(map[int]bool, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty entry in the list")
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		if v < 1 || v > n {
			return nil, fmt.Errorf("%d is outside 1..%d", v, n)
		}
		if seen[v] {
			return nil, fmt.Errorf("%d appears more than once", v)
		}
		seen[v] = true
		picks = append(picks, v)
	}
	return picks, nil
}

// relevanceStars maps a rank onto a 1..5 scale, 5 being most relevant.
func relevanceStars(rank, total int) int {
	if total <= 1 {
		return 5
	}
	if rank < 1 {
		rank = 1
	}
	if rank > total {
		rank = total
	}
	return 1 + (total-rank)*4/(total-1)
}

func starBar(stars int) string {
	return strings.Repeat("★", stars) + strings.Repeat("☆", 5-stars)
}
