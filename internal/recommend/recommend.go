// Package recommend ranks startups for a user by how many of their job offers' required
// skills the user has.
package recommend

import (
	"context"
	"sort"

	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"github.com/PaulBabatuyi/tumatch-chat/internal/logo"
	"github.com/op/go-logging"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var log = logging.MustGetLogger("recommend")

// Users loads the requesting user.
type Users interface {
	GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
}

// Startups loads the candidates. ListStartupRequirements only needs ids and job offer
// requirements to be populated.
type Startups interface {
	ListStartupRequirements(ctx context.Context) ([]*data.Startup, error)
	GetStartupByID(ctx context.Context, id bson.ObjectID) (*data.Startup, error)
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithLogoWidth sets the maximum width of logo thumbnails in previews.
func WithLogoWidth(px int) Option {
	return func(r *Recommender) { r.logoWidth = px }
}

// Recommender computes rankings fresh on every call; nothing is cached.
type Recommender struct {
	users     Users
	startups  Startups
	logoWidth int
}

// New returns a Recommender reading users and startups from the given stores. Logo
// thumbnails default to logo.DefaultMaxWidth.
func New(users Users, startups Startups, opts ...Option) *Recommender {
	r := &Recommender{users: users, startups: startups, logoWidth: logo.DefaultMaxWidth}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Ranked is a startup id with its score.
type Ranked struct {
	ID    bson.ObjectID
	Score int
}

// Score sums, over all job offers of st, the required skills present in skills. A skill
// required by several offers counts once per offer.
func Score(skills map[bson.ObjectID]struct{}, st *data.Startup) int {
	score := 0
	for _, offer := range st.JobOffers {
		for _, req := range offer.RequiredSkills {
			if _, ok := skills[req]; ok {
				score++
			}
		}
	}
	return score
}

// Rank orders startups by score, highest first. Equal scores are ordered by ascending
// startup id, which is creation order.
func Rank(userSkills []bson.ObjectID, startups []*data.Startup) []Ranked {
	set := make(map[bson.ObjectID]struct{}, len(userSkills))
	for _, s := range userSkills {
		set[s] = struct{}{}
	}

	ranked := make([]Ranked, len(startups))
	for i, st := range startups {
		ranked[i] = Ranked{ID: st.ID, Score: Score(set, st)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID.Hex() < ranked[j].ID.Hex()
	})
	return ranked
}

// Recommend returns every startup id ordered by relevance to userID. Read failures yield
// an empty list.
func (r *Recommender) Recommend(ctx context.Context, userID string) []string {
	return hexIDs(r.rank(ctx, userID))
}

func hexIDs(ranked []Ranked) []string {
	ids := make([]string, len(ranked))
	for i, rk := range ranked {
		ids[i] = rk.ID.Hex()
	}
	return ids
}

func (r *Recommender) rank(ctx context.Context, userID string) []Ranked {
	uid, err := data.ParseID(userID)
	if err != nil {
		log.Warningf("recommendations for %q: %v", userID, err)
		return nil
	}
	user, err := r.users.GetUserByID(ctx, uid)
	if err != nil {
		log.Warningf("recommendations for %s: loading user: %v", userID, err)
		return nil
	}
	startups, err := r.startups.ListStartupRequirements(ctx)
	if err != nil {
		log.Errorf("recommendations for %s: loading startups: %v", userID, err)
		return nil
	}
	return Rank(user.Skills, startups)
}

// Preview is the full ranking plus the first page of startups ready for display.
type Preview struct {
	Recommendation     []string
	InitialStartupLoad []*data.Startup
}

// RecommendWithPreview ranks like Recommend and hydrates the first pageSize startups.
// Inline logos are replaced with a data: URL in Logo.ImageURL. A startup that cannot be
// loaded is left out of the page but stays in the ranking.
func (r *Recommender) RecommendWithPreview(ctx context.Context, userID string, pageSize int) *Preview {
	ranked := r.rank(ctx, userID)
	p := &Preview{Recommendation: hexIDs(ranked), InitialStartupLoad: []*data.Startup{}}
	if pageSize <= 0 {
		return p
	}
	if pageSize > len(ranked) {
		pageSize = len(ranked)
	}

	for _, rk := range ranked[:pageSize] {
		st, err := r.startups.GetStartupByID(ctx, rk.ID)
		if err != nil {
			log.Warningf("preview: loading startup %s: %v", rk.ID.Hex(), err)
			continue
		}
		if st.Logo != nil && len(st.Logo.Data) > 0 {
			st.Logo.ImageURL = logo.DataURL(st.Logo, r.logoWidth)
			st.Logo.Data = nil
		}
		p.InitialStartupLoad = append(p.InitialStartupLoad, st)
	}
	return p
}
