package services

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"leadgame/internal/models"
)

// Categories are the drop slots in display order.
var Categories = []models.Category{
	{ID: "Origin Story", Name: "Origin Story"},
	{ID: "Problem–Solution", Name: "Problem–Solution"},
	{ID: "Value", Name: "Value"},
	{ID: "Social Proof", Name: "Social Proof"},
	{ID: "Work Process", Name: "Work Process"},
	{ID: "Call to Action", Name: "Call to Action"},
}

// Posts is the deck, one post per category.
var Posts = []models.Post{
	{
		ID:       1,
		Content:  "We started as two marketers in a spare room who believed every brand deserves a strategy, not just a feed.",
		Category: "Origin Story",
		Image:    "/images/post1.png",
	},
	{
		ID:       2,
		Content:  "Posting every day but seeing no growth? We turn scattered content into a plan that converts.",
		Category: "Problem–Solution",
		Image:    "/images/post2.png",
	},
	{
		ID:       3,
		Content:  "We help your brand achieve the growth it is capable of through strategic digital marketing planning & execution.",
		Category: "Value",
		Image:    "/images/post3.png",
	},
	{
		ID:       4,
		Content:  "\"Our engagement tripled in three months.\" Hear what our clients say about working with us.",
		Category: "Social Proof",
		Image:    "/images/post4.png",
	},
	{
		ID:       5,
		Content:  "Audit, plan, create, measure. Here is how every campaign moves from idea to results.",
		Category: "Work Process",
		Image:    "/images/post5.png",
	},
	{
		ID:       6,
		Content:  "Ready to elevate your social media presence? Book a free strategy call today.",
		Category: "Call to Action",
		Image:    "/images/post6.png",
	},
}

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrPostNotInPool   = errors.New("post is not in the pool")
	ErrRoundIncomplete = errors.New("every category needs a post before submitting")
)

// IsCategory reports whether id names one of the fixed categories.
func IsCategory(id string) bool {
	for _, c := range Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// GameRound tracks a single play-through: which post sits in each category
// and which posts are still undealt. It is a value owned by one caller and is
// not safe for concurrent use.
type GameRound struct {
	placed map[string]*models.Post // Key: category ID
	pool   []models.Post
	rng    *rand.Rand
}

// NewGameRound starts a round with every category empty and the posts shuffled.
// A nil rng uses the global source.
func NewGameRound(posts []models.Post, rng *rand.Rand) *GameRound {
	r := &GameRound{
		placed: make(map[string]*models.Post, len(Categories)),
		pool:   append([]models.Post(nil), posts...),
		rng:    rng,
	}
	for _, c := range Categories {
		r.placed[c.ID] = nil
	}
	r.Shuffle()
	return r
}

// Shuffle reorders the undealt pool.
func (r *GameRound) Shuffle() {
	swap := func(i, j int) { r.pool[i], r.pool[j] = r.pool[j], r.pool[i] }
	if r.rng != nil {
		r.rng.Shuffle(len(r.pool), swap)
		return
	}
	rand.Shuffle(len(r.pool), swap)
}

// Pool returns a copy of the undealt posts in their current order.
func (r *GameRound) Pool() []models.Post {
	return append([]models.Post(nil), r.pool...)
}

// PostAt returns the post placed in a category, if any.
func (r *GameRound) PostAt(categoryID string) (models.Post, bool) {
	p := r.placed[categoryID]
	if p == nil {
		return models.Post{}, false
	}
	return *p, true
}

// Place moves a post from the pool into a category. A post already sitting in
// that category goes back to the end of the pool.
func (r *GameRound) Place(postID int, categoryID string) error {
	if !IsCategory(categoryID) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, categoryID)
	}

	idx := -1
	for i, p := range r.pool {
		if p.ID == postID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrPostNotInPool, postID)
	}

	post := r.pool[idx]
	r.pool = append(r.pool[:idx], r.pool[idx+1:]...)

	if prev := r.placed[categoryID]; prev != nil {
		r.pool = append(r.pool, *prev)
	}
	r.placed[categoryID] = &post
	return nil
}

// Remaining returns how many categories still need a post.
func (r *GameRound) Remaining() int {
	n := 0
	for _, c := range Categories {
		if r.placed[c.ID] == nil {
			n++
		}
	}
	return n
}

// Complete reports whether every category holds a post.
func (r *GameRound) Complete() bool {
	return r.Remaining() == 0
}

// Finalize scores a complete round.
//
// PlacementOrder lists the true category of the post found in each slot, in
// display order. It is not a per-slot correctness flag; GameScore is the
// authoritative result.
func (r *GameRound) Finalize() (*models.ScoreResult, error) {
	if !r.Complete() {
		return nil, ErrRoundIncomplete
	}

	correct := 0
	order := make([]string, 0, len(Categories))
	for _, c := range Categories {
		post := r.placed[c.ID]
		if post.Category == c.ID {
			correct++
		}
		order = append(order, post.Category)
	}

	return &models.ScoreResult{
		GameScore:         Score(correct, len(Categories)),
		CorrectPlacements: correct,
		PlacementOrder:    order,
	}, nil
}

// Score turns a count of correct placements into a 0-100 percentage.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// GameService serves the deck and scores finished rounds. It holds no
// per-player state; every call builds its own GameRound.
type GameService struct {
	posts []models.Post
}

// NewGameService creates a GameService over the standard deck.
func NewGameService() *GameService {
	return &GameService{posts: Posts}
}

// Deck returns the categories and a freshly shuffled copy of the posts.
func (s *GameService) Deck() models.Deck {
	round := NewGameRound(s.posts, nil)
	return models.Deck{
		Categories: append([]models.Category(nil), Categories...),
		Posts:      round.Pool(),
	}
}

// ScorePlacements replays a client's final arrangement and scores it.
func (s *GameService) ScorePlacements(placements map[string]int) (*models.ScoreResult, error) {
	round := NewGameRound(s.posts, nil)
	// Display order keeps error reporting deterministic.
	for _, c := range Categories {
		postID, ok := placements[c.ID]
		if !ok {
			continue
		}
		if err := round.Place(postID, c.ID); err != nil {
			return nil, err
		}
	}
	for categoryID := range placements {
		if !IsCategory(categoryID) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, categoryID)
		}
	}
	return round.Finalize()
}
