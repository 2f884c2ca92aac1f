// Package confirm gates destructive runs behind operator prompts. Three
// policies exist: force (no prompts), one upfront confirmation for the whole
// batch, and a per-target prompt.
package confirm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/vasylivanchyk330/AWS-Automation/engine"
)

// Policy decides which targets the operator has approved for deletion.
type Policy struct {
	force   bool
	perItem bool
	in      *bufio.Reader
	out     io.Writer
}

// NewPolicy builds a policy reading answers from in and writing prompts to
// out. force wins over perItem.
func NewPolicy(force, perItem bool, in io.Reader, out io.Writer) *Policy {
	return &Policy{
		force:   force,
		perItem: perItem,
		in:      bufio.NewReader(in),
		out:     out,
	}
}

// ConfirmRun asks once for the whole batch before anything is deleted. In
// per-item or force mode there is no upfront question and the run proceeds.
func (p *Policy) ConfirmRun(kind string, targets []string) (bool, error) {
	if p.force || p.perItem {
		return true, nil
	}
	if len(targets) == 0 {
		return true, nil
	}

	fmt.Fprintf(p.out, "The following %s matched the criteria:\n", kind)
	for _, t := range targets {
		fmt.Fprintf(p.out, "  - %s\n", t)
	}
	fmt.Fprintf(p.out, "Delete all %d of them? [y/N]: ", len(targets))

	return p.readAnswer()
}

// Approve returns the per-target gate handed to the pipeline.
func (p *Policy) Approve() engine.ApproveFunc {
	if !p.perItem || p.force {
		return nil
	}
	return func(target string) bool {
		fmt.Fprintf(p.out, "Delete %s? [y/N]: ", target)
		ok, err := p.readAnswer()
		if err != nil {
			// Treat a closed input stream as a refusal
			return false
		}
		return ok
	}
}

func (p *Policy) readAnswer() (bool, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
