package service

import (
	"errors"
	"fmt"

	"earnx/internal/ledger"

	"github.com/shopspring/decimal"
)

var ErrUnknownTask = errors.New("unknown task")

// Task is one earn opportunity. RewardAmount is what the user is credited;
// OfferTotal is what the offer provider pays.
type Task struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	OfferType    string          `json:"offer_type"` // app | ad | video | referral
	OfferTotal   decimal.Decimal `json:"offer_total"`
	RewardAmount decimal.Decimal `json:"reward_amount"`
	Category     ledger.Category `json:"category"`
}

// Reward is the ledger grant for completing t.
func (t Task) Reward() ledger.Reward {
	return ledger.Reward{
		Description: t.Description,
		Amount:      t.RewardAmount,
		Category:    t.Category,
	}
}

type offer struct {
	id, name, offerType, total string
}

var defaultOffers = []offer{
	{"winzo-play", "Download WinZO App & play a game", "app", "5"},
	{"short-ad", "Watch a short Ad", "ad", "0.75"},
	{"a23-register", "Download A23 Games and register", "app", "10"},
	{"bitcoin-video", "Watch a video about Bitcoin", "video", "0.50"},
	{"refer-friend", "Refer a friend to EarnX", "referral", "2.50"},
	{"quick-survey", "Complete a quick survey", "app", "8"},
	{"game-level-5", "Install and reach level 5 in a game", "app", "25"},
}

// WatchAdTaskID is the rewarded-video slot on the home screen.
const WatchAdTaskID = "watch-ad"

// TaskCatalog is the server-side source of reward amounts and categories.
type TaskCatalog struct {
	tasks []Task
	byID  map[string]Task
}

func NewTaskCatalog(sharePercent, adReward decimal.Decimal) *TaskCatalog {
	c := &TaskCatalog{byID: make(map[string]Task)}
	c.add(Task{
		ID:           WatchAdTaskID,
		Description:  fmt.Sprintf("Watched Ad for %s INR", adReward.StringFixed(2)),
		OfferType:    "ad",
		OfferTotal:   adReward,
		RewardAmount: adReward,
		Category:     ledger.CategoryAd,
	})
	share := sharePercent.Div(decimal.NewFromInt(100))
	for _, o := range defaultOffers {
		total := decimal.RequireFromString(o.total)
		c.add(Task{
			ID:           o.id,
			Description:  o.name,
			OfferType:    o.offerType,
			OfferTotal:   total,
			RewardAmount: total.Mul(share).Round(2),
			Category:     categoryFor(o.offerType),
		})
	}
	return c
}

// categoryFor maps offer types onto referral counters: watching content
// counts as an ad, everything else as a task.
func categoryFor(offerType string) ledger.Category {
	switch offerType {
	case "ad", "video":
		return ledger.CategoryAd
	default:
		return ledger.CategoryTask
	}
}

func (c *TaskCatalog) add(t Task) {
	c.tasks = append(c.tasks, t)
	c.byID[t.ID] = t
}

func (c *TaskCatalog) List() []Task {
	out := make([]Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

func (c *TaskCatalog) Get(id string) (Task, error) {
	t, ok := c.byID[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return t, nil
}
