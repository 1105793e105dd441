package main

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/PaulBabatuyi/tumatch-chat/internal/auth"
	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"github.com/PaulBabatuyi/tumatch-chat/internal/recommend"
	"github.com/PaulBabatuyi/tumatch-chat/internal/storage"
	"github.com/disintegration/imaging"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_SampleFixture(t *testing.T) {
	ctx := context.Background()
	stores := storage.Memory()

	fx, err := LoadFixture(filepath.Join("testdata", "fixture.yaml"))
	require.NoError(t, err)

	sum, err := Seed(ctx, stores, fx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Skills: 4, Users: 3, Startups: 2}, sum)

	ada, err := stores.Users.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, data.ProfessionStudent, ada.Profession)
	assert.Len(t, ada.Skills, 2)
	assert.NoError(t, auth.CheckPassword(ada.Password, "changeme123"))

	// Gopher Labs needs go twice and ml once; Shopfront needs neither.
	startups, err := stores.Startups.ListStartupRequirements(ctx)
	require.NoError(t, err)
	require.Len(t, startups, 2)
	ranked := recommend.New(stores.Users, stores.Startups).Recommend(ctx, ada.ID.Hex())
	require.Len(t, ranked, 2)
	first, err := data.ParseID(ranked[0])
	require.NoError(t, err)
	gopher, err := stores.Startups.GetStartupByID(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "Gopher Labs", gopher.Name)
	assert.Len(t, gopher.CoFounders, 1)
	assert.Equal(t, "software", gopher.Industry.Value)
}

func TestSeed_Rerun(t *testing.T) {
	ctx := context.Background()
	stores := storage.Memory()
	fx, err := LoadFixture(filepath.Join("testdata", "fixture.yaml"))
	require.NoError(t, err)

	_, err = Seed(ctx, stores, fx)
	require.NoError(t, err)
	sum, err := Seed(ctx, stores, fx)
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Users)
	assert.Equal(t, 3, sum.Skipped)
	assert.Equal(t, 2, sum.Startups)
}

func TestSeed_BadRecordsDoNotStopTheRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
skills:
  - {label: Go, value: go}
users:
  - {email: ok@example.com, password: pw, skills: [go]}
  - {email: typo@example.com, password: pw, skills: [golang]}
  - {email: "", password: pw}
startups:
  - startupName: Orphan
    coFounders: [nobody@example.com]
  - startupName: Fine
    jobOffers:
      - {shortDescription: dev, requiredSkills: [go]}
`), 0o600))

	fx, err := LoadFixture(path)
	require.NoError(t, err)
	stores := storage.Memory()
	sum, err := Seed(context.Background(), stores, fx)

	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 3)
	assert.Equal(t, 1, sum.Users)
	assert.Equal(t, 1, sum.Startups)
}

func TestSeed_LogoFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imaging.Save(imaging.New(8, 8, color.NRGBA{R: 255, A: 255}), filepath.Join(dir, "logo.png")))
	path := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
startups:
  - startupName: Pictured
    logoFile: logo.png
`), 0o600))

	fx, err := LoadFixture(path)
	require.NoError(t, err)
	stores := storage.Memory()
	_, err = Seed(context.Background(), stores, fx)
	require.NoError(t, err)

	all, err := stores.Startups.ListStartupRequirements(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	st, err := stores.Startups.GetStartupByID(context.Background(), all[0].ID)
	require.NoError(t, err)
	require.NotNil(t, st.Logo)
	assert.Equal(t, "image/png", st.Logo.ImageType)
	assert.NotEmpty(t, st.Logo.Data)
}

func TestLoadFixture_Errors(t *testing.T) {
	_, err := LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users: {not: [a list"), 0o600))
	_, err = LoadFixture(path)
	assert.Error(t, err)
}

func TestRun_RequiresFixture(t *testing.T) {
	assert.Error(t, run(nil))
}
