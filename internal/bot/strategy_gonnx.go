package bot

import (
	"fmt"
	"log"
	"math/rand"
	"sync"

	gonnx "github.com/advancedclimatesystems/gonnx"
	"gorgonia.org/tensor"

	"gridlords/internal/bot/neural"
	"gridlords/pkg/conquest"
)

// GonnxModelPath is the file holding value.onnx. Set at startup from the
// GONNX_MODEL_PATH env var or default to "engine/models/value.onnx".
var GonnxModelPath string

// newGonnxOrFallback attempts to create a GonnxStrategy. If loading
// fails, it falls back to the search strategy.
func newGonnxOrFallback(seed int64) Strategy {
	s, err := newGonnxStrategy(seed)
	if err != nil {
		log.Printf("bot: hard-gonnx requested but model load failed: %v; falling back to hard", err)
		return NewSearchStrategy(DefaultSearchConfig(), seed)
	}
	return s
}

// GonnxStrategy uses gonnx (pure Go ONNX runtime) for move selection: it
// simulates each top candidate through the real resolution rules, runs
// the value network on the resulting position, and plays the move whose
// outcome the network likes best. Inference errors fall back to search on
// that turn.
type GonnxStrategy struct {
	value    *gonnx.Model
	fallback *SearchStrategy
	rng      *rand.Rand
	scratch  *conquest.GameState
	mu       sync.Mutex
}

func newGonnxStrategy(seed int64) (*GonnxStrategy, error) {
	path := GonnxModelPath
	if path == "" {
		path = "engine/models/value.onnx"
	}
	value, err := gonnx.NewModelFromFile(path)
	if err != nil {
		return nil, err
	}
	return &GonnxStrategy{
		value:    value,
		fallback: NewSearchStrategy(DefaultSearchConfig(), seed),
		rng:      newRng(seed),
	}, nil
}

func (s *GonnxStrategy) Name() string { return "hard-gonnx" }

func (s *GonnxStrategy) ChooseMove(gs *conquest.GameState, player int) *conquest.Move {
	ranked := TopKMoves(gs, player, defaultBranchCap)
	if len(ranked) == 0 {
		return nil
	}

	best := -1
	bestValue := float32(0)
	for i := range ranked {
		s.scratch = gs.CloneInto(s.scratch)
		if !conquest.Resolve(s.scratch, player, ranked[i].Move) {
			continue
		}
		if s.scratch.GameOver && s.scratch.Winner == player {
			return &ranked[i].Move
		}
		v, err := s.runValue(s.scratch, player)
		if err != nil {
			log.Printf("bot/gonnx: value inference failed: %v, falling back to search", err)
			return s.fallback.ChooseMove(gs, player)
		}
		if best == -1 || v > bestValue {
			best, bestValue = i, v
		}
	}
	if best == -1 {
		return randomMove(gs, player, s.rng)
	}
	return &ranked[best].Move
}

// runValue encodes the position and runs the value model, returning the
// predicted win probability for player.
func (s *GonnxStrategy) runValue(gs *conquest.GameState, player int) (float32, error) {
	boardData := neural.EncodeBoard(gs, player)
	boardTensor := tensor.New(
		tensor.WithShape(1, neural.NumTiles, neural.NumFeatures),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(boardData),
	)

	inputs := gonnx.Tensors{
		"board": boardTensor,
	}

	s.mu.Lock()
	outputs, err := s.value.Run(inputs)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	out, ok := outputs["value"]
	if !ok {
		// Take the first output if the exporter renamed it.
		for _, v := range outputs {
			out = v
			break
		}
	}
	if out == nil {
		return 0, fmt.Errorf("no output tensor from value model")
	}
	return neural.ValueFromOutput(out.Data())
}
