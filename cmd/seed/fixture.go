package main

import (
	"context"
	"mime"
	"os"
	"path/filepath"

	"github.com/PaulBabatuyi/tumatch-chat/internal/auth"
	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"github.com/PaulBabatuyi/tumatch-chat/internal/normalize"
	"github.com/PaulBabatuyi/tumatch-chat/internal/storage"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML document loaded by the seeder. Users and job offers refer to
// skills by value and startups refer to co-founders by email.
type Fixture struct {
	Skills   []data.Skill     `yaml:"skills"`
	Users    []fixtureUser    `yaml:"users"`
	Startups []fixtureStartup `yaml:"startups"`

	dir string
}

type fixtureUser struct {
	data.User `yaml:",inline"`

	Skills []string `yaml:"skills"`
}

type fixtureOffer struct {
	data.JobOffer `yaml:",inline"`

	RequiredSkills []string `yaml:"requiredSkills"`
}

type fixtureStartup struct {
	data.Startup `yaml:",inline"`

	CoFounders []string       `yaml:"coFounders"`
	JobOffers  []fixtureOffer `yaml:"jobOffers"`
	// LogoFile is read relative to the fixture and stored inline.
	LogoFile   string         `yaml:"logoFile"`
}

// Summary counts what a run wrote.
type Summary struct {
	Skills   int
	Users    int
	Skipped  int
	Startups int
}

// LoadFixture reads and decodes a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading fixture")
	}
	var fx Fixture
	if err := yaml.Unmarshal(b, &fx); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	fx.dir = filepath.Dir(path)
	return &fx, nil
}

// Seed writes fx into stores. Users whose email already exists are skipped so a fixture
// can be applied repeatedly; startups are inserted on every run. Bad records do not stop
// the run; their errors are returned together.
func Seed(ctx context.Context, stores *storage.Stores, fx *Fixture) (Summary, error) {
	var sum Summary

	ids, err := stores.Skills.UpsertSkills(ctx, fx.Skills)
	if err != nil {
		return sum, errors.Wrap(err, "skills")
	}
	skills := make(map[string]bson.ObjectID, len(ids))
	for i, id := range ids {
		skills[fx.Skills[i].Value] = id
	}
	sum.Skills = len(skills)

	resolve := func(values []string) ([]bson.ObjectID, error) {
		out := make([]bson.ObjectID, 0, len(values))
		for _, v := range values {
			id, ok := skills[v]
			if !ok {
				return nil, errors.Errorf("undeclared skill %q", v)
			}
			out = append(out, id)
		}
		return out, nil
	}

	var result *multierror.Error

	for _, fu := range fx.Users {
		u := fu.User
		u.Email = normalize.Email(u.Email)
		if u.Email == "" || u.Password == "" {
			result = multierror.Append(result, errors.Errorf("user %q: email and password are required", fu.Email))
			continue
		}
		if u.Profession == "" {
			u.Profession = data.ProfessionStudent
		}
		if u.Skills, err = resolve(fu.Skills); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "user %s", u.Email))
			continue
		}
		if u.Password, err = auth.HashPassword(u.Password); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "user %s", u.Email))
			continue
		}
		_, err = stores.Users.CreateUser(ctx, &u)
		switch {
		case errors.Is(err, data.ErrDuplicate):
			log.Infof("user %s already exists, skipping", u.Email)
			sum.Skipped++
		case err != nil:
			result = multierror.Append(result, errors.Wrapf(err, "user %s", u.Email))
		default:
			sum.Users++
		}
	}

	for _, fs := range fx.Startups {
		st, err := fx.startup(ctx, stores, fs, resolve)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "startup %q", fs.Name))
			continue
		}
		if _, err := stores.Startups.CreateStartup(ctx, st); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "startup %q", fs.Name))
			continue
		}
		sum.Startups++
	}

	return sum, result.ErrorOrNil()
}

func (fx *Fixture) startup(ctx context.Context, stores *storage.Stores, fs fixtureStartup,
	resolve func([]string) ([]bson.ObjectID, error)) (*data.Startup, error) {
	st := fs.Startup
	if st.Name == "" {
		return nil, errors.New("startupName is required")
	}

	for _, email := range fs.CoFounders {
		u, err := stores.Users.GetUserByEmail(ctx, normalize.Email(email))
		if err != nil {
			return nil, errors.Wrapf(err, "co-founder %s", email)
		}
		st.CoFounders = append(st.CoFounders, u.ID)
	}

	for _, fo := range fs.JobOffers {
		offer := fo.JobOffer
		req, err := resolve(fo.RequiredSkills)
		if err != nil {
			return nil, errors.Wrapf(err, "job offer %q", offer.ShortDescription)
		}
		offer.ID = bson.NewObjectID()
		offer.RequiredSkills = req
		st.JobOffers = append(st.JobOffers, offer)
	}

	if fs.LogoFile != "" {
		path := fs.LogoFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(fx.dir, path)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "logo")
		}
		logo := &data.Logo{Data: b, ImageType: mime.TypeByExtension(filepath.Ext(path))}
		if st.Logo != nil && st.Logo.ImageType != "" {
			logo.ImageType = st.Logo.ImageType
		}
		st.Logo = logo
	}
	return &st, nil
}
