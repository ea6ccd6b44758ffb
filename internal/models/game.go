package models

// Category is one of the fixed drop slots of the sorting game.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Post is a social media post the player sorts into a category.
// Category holds the post's true category id.
type Post struct {
	ID       int    `json:"id"`
	Content  string `json:"content"`
	Category string `json:"category"`
	Image    string `json:"image"`
}

// Deck is what a client needs to start a round.
type Deck struct {
	Categories []Category `json:"categories"`
	Posts      []Post     `json:"posts"`
}

// ScoreRequest maps category ids to the id of the post dropped there.
type ScoreRequest struct {
	Placements map[string]int `json:"placements" binding:"required"`
}

// ScoreResult is the finalized outcome of a game round.
type ScoreResult struct {
	GameScore         int      `json:"gameScore"`
	CorrectPlacements int      `json:"correctPlacements"`
	PlacementOrder    []string `json:"placementOrder"`
}
