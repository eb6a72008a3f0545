package consult_test

import (
	"errors"
	"testing"

	"github.com/kalkwerk/konsil/internal/domain"
	"github.com/kalkwerk/konsil/internal/domain/consult"
)

func TestConsultationAdvance_FullPipeline(t *testing.T) {
	c := consult.NewConsultation("c1", consult.Task{ID: "t1"})
	if c.State != consult.StateInit {
		t.Fatalf("new consultation state = %q, want init", c.State)
	}

	path := []consult.State{
		consult.StateClassified,
		consult.StateExecuting,
		consult.StateConflictsDetected,
		consult.StateResolving,
		consult.StateConsensus,
		consult.StateDone,
	}
	for _, next := range path {
		if err := c.Advance(next); err != nil {
			t.Fatalf("advance to %q: %v", next, err)
		}
	}
	if !c.State.IsTerminal() {
		t.Fatal("done should be terminal")
	}
}

func TestConsultationAdvance_RFIBranch(t *testing.T) {
	c := consult.NewConsultation("c1", consult.Task{})
	if err := c.Advance(consult.StateClassified); err != nil {
		t.Fatalf("advance to classified: %v", err)
	}
	if err := c.Advance(consult.StateRFIPending); err != nil {
		t.Fatalf("advance to rfi_pending: %v", err)
	}
	if !c.State.IsTerminal() {
		t.Fatal("rfi_pending should be terminal")
	}
}

func TestConsultationAdvance_IllegalEdge(t *testing.T) {
	c := consult.NewConsultation("c1", consult.Task{})
	err := c.Advance(consult.StateConsensus)
	if err == nil {
		t.Fatal("expected error for init -> consensus")
	}
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got: %v", err)
	}
	if c.State != consult.StateInit {
		t.Fatalf("state changed on rejected edge: %q", c.State)
	}
}

func TestConsultationAdvance_NoSkippingStages(t *testing.T) {
	c := consult.NewConsultation("c1", consult.Task{})
	if err := c.Advance(consult.StateClassified); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := c.Advance(consult.StateDone); err == nil {
		t.Fatal("expected error for classified -> done")
	}
}

func TestConsultationAdvance_TerminalHasNoEdges(t *testing.T) {
	for _, terminal := range []consult.State{consult.StateDone, consult.StateFailed, consult.StateRFIPending} {
		c := &consult.Consultation{ID: "c1", State: terminal}
		if err := c.Advance(consult.StateExecuting); err == nil {
			t.Errorf("expected error advancing out of %q", terminal)
		}
	}
}

func TestConsultationFail_RecordsCause(t *testing.T) {
	c := consult.NewConsultation("c1", consult.Task{})
	if err := c.Advance(consult.StateClassified); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := c.Fail(errors.New("gateway down")); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if c.State != consult.StateFailed {
		t.Fatalf("state = %q, want failed", c.State)
	}
	if c.Error != "gateway down" {
		t.Fatalf("error = %q, want cause recorded", c.Error)
	}
}

func TestConsultationFail_NilCause(t *testing.T) {
	c := consult.NewConsultation("c1", consult.Task{})
	if err := c.Fail(nil); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if c.Error != "" {
		t.Fatalf("error = %q, want empty", c.Error)
	}
}

func TestConsultationFail_TerminalRejected(t *testing.T) {
	c := &consult.Consultation{ID: "c1", State: consult.StateDone}
	err := c.Fail(errors.New("late failure"))
	if err == nil {
		t.Fatal("expected error failing a done consultation")
	}
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got: %v", err)
	}
	if c.State != consult.StateDone {
		t.Fatalf("terminal state changed to %q", c.State)
	}
}

func TestStateIsTerminal(t *testing.T) {
	terminal := map[consult.State]bool{
		consult.StateInit:              false,
		consult.StateClassified:        false,
		consult.StateRFIPending:        true,
		consult.StateExecuting:         false,
		consult.StateConflictsDetected: false,
		consult.StateResolving:         false,
		consult.StateConsensus:         false,
		consult.StateDone:              true,
		consult.StateFailed:            true,
	}
	for state, want := range terminal {
		if got := state.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%q) = %v, want %v", state, got, want)
		}
	}
}

func TestConsultationWarn(t *testing.T) {
	c := consult.NewConsultation("c1", consult.Task{})
	c.Warn("knowledge base unavailable")
	c.Warn("fallback parse")
	if len(c.Warnings) != 2 {
		t.Fatalf("warnings = %d, want 2", len(c.Warnings))
	}
}
