package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Professions accepted on registration.
const (
	ProfessionStudent  = "student"
	ProfessionInvestor = "investor"
	ProfessionAdmin    = "admin"
)

// User maps to the users collection. Skills reference documents in the skills collection.
type User struct {
	ID         bson.ObjectID   `bson:"_id,omitempty" yaml:"-"`
	Email      string          `bson:"email" yaml:"email"`
	Password   string          `bson:"password" yaml:"password"`
	FirstName  string          `bson:"firstName" yaml:"firstName"`
	LastName   string          `bson:"lastName" yaml:"lastName"`
	Profession string          `bson:"profession" yaml:"profession"`
	Skills     []bson.ObjectID `bson:"skills" yaml:"-"`
	CreatedAt  time.Time       `bson:"createdAt" yaml:"-"`
	UpdatedAt  time.Time       `bson:"updatedAt" yaml:"-"`
}

// Profile is the display subset of a user.
type Profile struct {
	ID         bson.ObjectID `bson:"_id"`
	FirstName  string        `bson:"firstName"`
	LastName   string        `bson:"lastName"`
	Profession string        `bson:"profession"`
}

// Skill is deduplicated by Value (case-sensitive).
type Skill struct {
	ID    bson.ObjectID `bson:"_id,omitempty" yaml:"-"`
	Label string        `bson:"label" yaml:"label"`
	Value string        `bson:"value" yaml:"value"`
}

// Option is a label/value pair picked from a fixed list (industry, stage, ...).
type Option struct {
	Label string `bson:"label" yaml:"label"`
	Value string `bson:"value" yaml:"value"`
}

// Logo is an uploaded image stored inline with its MIME type.
type Logo struct {
	Data      []byte `bson:"data,omitempty" yaml:"-"`
	ImageType string `bson:"imageType,omitempty" yaml:"imageType"`
	ImageURL  string `bson:"imageUrl,omitempty" yaml:"imageUrl"`
}

type JobOffer struct {
	ID               bson.ObjectID   `bson:"_id,omitempty" yaml:"-"`
	ShortDescription string          `bson:"shortDescription" yaml:"shortDescription"`
	LongDescription  string          `bson:"longDescription" yaml:"longDescription"`
	RequiredSkills   []bson.ObjectID `bson:"requiredSkills" yaml:"-"`
}

// Startup maps to the startups collection.
type Startup struct {
	ID               bson.ObjectID   `bson:"_id,omitempty" yaml:"-"`
	CreatedAt        time.Time       `bson:"createdAt" yaml:"-"`
	Logo             *Logo           `bson:"startupLogo,omitempty" yaml:"logo,omitempty"`
	Name             string          `bson:"startupName" yaml:"startupName"`
	Industry         Option          `bson:"industry" yaml:"industry"`
	BusinessModel    Option          `bson:"businessModel" yaml:"businessModel"`
	InvestmentStage  Option          `bson:"investmentStage" yaml:"investmentStage"`
	WebsiteURL       string          `bson:"websiteURL" yaml:"websiteURL"`
	CoFounders       []bson.ObjectID `bson:"coFounders" yaml:"-"`
	Slogan           string          `bson:"slogan" yaml:"slogan"`
	ShortDescription string          `bson:"shortDescription" yaml:"shortDescription"`
	LongDescription  string          `bson:"longDescription" yaml:"longDescription"`
	JobOffers        []JobOffer      `bson:"jobOffers" yaml:"-"`
}

// ChatMessage is one entry of a chat's append-only message list.
type ChatMessage struct {
	ID      bson.ObjectID `bson:"_id,omitempty"`
	Sender  bson.ObjectID `bson:"sender"`
	Message string        `bson:"message"`
	Date    time.Time     `bson:"date"`
}

// Chat maps to the chats collection: two participants and their messages in append order.
type Chat struct {
	ID           bson.ObjectID   `bson:"_id,omitempty"`
	Participants []bson.ObjectID `bson:"participants"`
	Messages     []ChatMessage   `bson:"messages"`
}

// HasParticipant reports whether id is one of the chat's participants.
func (c *Chat) HasParticipant(id bson.ObjectID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}
