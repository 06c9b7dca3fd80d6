package neural

// BoardSide is the grid side length the value model was trained on.
// Smaller boards are padded with mountain tiles, larger boards cropped.
const BoardSide = 20

// NumTiles is the flattened board length.
const NumTiles = BoardSide * BoardSide

// NumFeatures is the number of channels per tile in the board tensor.
const NumFeatures = 11

// Channel offsets. Ownership is encoded relative to the acting player so
// one model serves any seat.
const (
	FeatType         = 0 // [0:4] tile type one-hot: blank, mountain, stronghold, capital
	FeatOwner        = 4 // [4:7] owner one-hot: own, enemy, neutral
	FeatUnits        = 7 // units / unitScale, capped at 1
	FeatCost         = 8 // remaining capture cost / costScale, capped at 1
	FeatOwnCapital   = 9
	FeatEnemyCapital = 10
)

// Normalization divisors for the scalar channels.
const (
	unitScale = 64.0
	costScale = 64.0
)

// TileIndex maps board coordinates to a flat tensor row.
func TileIndex(x, y int) int { return y*BoardSide + x }
