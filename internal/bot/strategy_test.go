package bot

import (
	"testing"
)

func TestStrategyForDifficulty(t *testing.T) {
	cases := []struct {
		difficulty string
		wantName   string
	}{
		{"random", "random"},
		{"easy", "greedy"},
		{"medium", "tactical"},
		{"hard", "search"},
		{"", "tactical"},
		{"nonsense", "tactical"},
	}
	for _, c := range cases {
		s := StrategyForDifficulty(c.difficulty, 1)
		if s.Name() != c.wantName {
			t.Errorf("difficulty %q: expected %s, got %s", c.difficulty, c.wantName, s.Name())
		}
	}
}

func TestValidDifficulty(t *testing.T) {
	for _, d := range Difficulties() {
		if !ValidDifficulty(d) {
			t.Errorf("ladder difficulty %q should be valid", d)
		}
	}
	if ValidDifficulty("impossible") {
		t.Error("unknown difficulty should be invalid")
	}
}

func TestPassStrategyNeverMoves(t *testing.T) {
	gs := decodeState(t, "7x1/1c9,2c3,.,1b9,2s5,.,#/1@0.0,2@1.0/1.1.1")

	s := PassStrategy{}
	if m := s.ChooseMove(gs, 1); m != nil {
		t.Errorf("pass strategy moved: %s", m.String())
	}
}

func TestRandomStrategyPlaysLegal(t *testing.T) {
	gs := decodeState(t, "7x1/1c9,2c3,.,1b9,2s5,.,#/1@0.0,2@1.0/1.1.1")

	s := NewRandomStrategy(21)
	for i := 0; i < 20; i++ {
		m := s.ChooseMove(gs, 1)
		if m == nil {
			t.Fatal("expected a move")
		}
		if !gs.ValidMove(1, *m) {
			t.Fatalf("illegal move %s", m.String())
		}
	}
}
