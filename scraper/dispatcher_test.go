package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/LedMarketing/OpenManus/cache"
	"github.com/LedMarketing/OpenManus/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	html  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, target string) (*FetchedPage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &FetchedPage{HTML: f.html, StatusCode: 200, FinalURL: target}, nil
}

type fakeExtractor struct {
	page      *models.AdvancedPage
	err       error
	calls     int
	selectors map[string]string
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, selectors map[string]string) (*models.AdvancedPage, error) {
	f.calls++
	f.selectors = selectors
	return f.page, f.err
}

type fakeGenerator struct {
	requirements string
	calls        int
}

func (f *fakeGenerator) GenerateScraper(_ context.Context, _ string, requirements string) (*models.GeneratedScript, error) {
	f.calls++
	f.requirements = requirements
	return &models.GeneratedScript{Script: "console.log(1)", Language: "javascript"}, nil
}

func newTestDispatcher(c *cache.Cache) (*Dispatcher, *fakeFetcher, *fakeExtractor, *fakeGenerator) {
	f := &fakeFetcher{html: `<html><head><title>Foo</title></head><body><h1>Bar</h1></body></html>`}
	e := &fakeExtractor{page: &models.AdvancedPage{Fallback: &models.PageSummary{Title: "Foo"}}}
	g := &fakeGenerator{}
	return NewDispatcher(f, e, g, c), f, e, g
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"https://example.com", false},
		{"http://example.com/path?q=1", false},
		{"  https://example.com  ", false},
		{"", true},
		{"example.com", true},
		{"/relative/path", true},
		{"not a url", true},
		{"https://", true},
		{"ftp://example.com/file", true},
		{"javascript:alert(1)", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := ValidateURL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, models.IsCode(err, models.ErrCodeValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDispatch_InvalidURLDoesNoIO(t *testing.T) {
	d, f, e, g := newTestDispatcher(nil)

	for _, mode := range []models.Mode{models.ModeBasic, models.ModeAdvanced, models.ModeGenerate} {
		_, err := d.Dispatch(context.Background(), models.ScrapeRequest{URL: "not-a-url", Mode: mode})
		require.Error(t, err)
		assert.True(t, models.IsCode(err, models.ErrCodeValidation), "mode %s", mode)
	}
	assert.Zero(t, f.calls)
	assert.Zero(t, e.calls)
	assert.Zero(t, g.calls)
}

func TestDispatch_Basic(t *testing.T) {
	d, _, _, _ := newTestDispatcher(nil)

	res, err := d.Dispatch(context.Background(), models.ScrapeRequest{URL: "https://example.com", Mode: models.ModeBasic})
	require.NoError(t, err)

	require.NotNil(t, res.Basic)
	assert.Nil(t, res.Advanced)
	assert.Equal(t, "Foo", res.Basic.Title)
	assert.Equal(t, []string{"Bar"}, res.Basic.Headings.H1)
	assert.Equal(t, res.Basic, res.Data())
	assert.False(t, res.Timestamp.IsZero())
}

func TestDispatch_BasicFetchFailure(t *testing.T) {
	d, f, _, _ := newTestDispatcher(nil)
	f.err = errors.New("httpfetch: HTTP 503 for https://example.com")

	_, err := d.Dispatch(context.Background(), models.ScrapeRequest{URL: "https://example.com", Mode: models.ModeBasic})
	require.Error(t, err)

	appErr := models.AsAppError(err)
	assert.Equal(t, models.ErrCodeFetch, appErr.Code)
	assert.Contains(t, appErr.Message, "HTTP 503")
	assert.Equal(t, 1, f.calls, "no retry")
}

func TestDispatch_BasicUsesCache(t *testing.T) {
	c := cache.New(10)
	defer c.Close()
	d, f, _, _ := newTestDispatcher(c)
	req := models.ScrapeRequest{URL: "https://example.com", Mode: models.ModeBasic, MaxAge: 60_000}

	res, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "miss", res.CacheStatus)

	res, err = d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "hit", res.CacheStatus)
	assert.Equal(t, "Foo", res.Basic.Title)
	assert.Equal(t, 1, f.calls)

	req.MaxAge = 0
	_, err = d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
}

func TestDispatch_AdvancedRejectsBadSelector(t *testing.T) {
	d, _, e, _ := newTestDispatcher(nil)

	_, err := d.Dispatch(context.Background(), models.ScrapeRequest{
		URL:       "https://example.com",
		Mode:      models.ModeAdvanced,
		Selectors: map[string]string{"broken": "div[["},
	})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodeValidation))
	assert.Zero(t, e.calls)
}

func TestDispatch_AdvancedWrapsFailures(t *testing.T) {
	d, _, e, _ := newTestDispatcher(nil)
	e.err = errors.New("net::ERR_NAME_NOT_RESOLVED")

	_, err := d.Dispatch(context.Background(), models.ScrapeRequest{URL: "https://nowhere.invalid", Mode: models.ModeAdvanced})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodeExtraction))
}

func TestDispatch_AdvancedKeepsSelectorValidationError(t *testing.T) {
	d, _, e, _ := newTestDispatcher(nil)
	e.err = models.ValidationError(`invalid selector for field "t": not valid`)

	_, err := d.Dispatch(context.Background(), models.ScrapeRequest{
		URL:       "https://example.com",
		Mode:      models.ModeAdvanced,
		Selectors: map[string]string{"t": `h1:contains("x")`},
	})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodeValidation))
	assert.Equal(t, 1, e.calls)
}

func TestDispatch_AdvancedPassesSelectors(t *testing.T) {
	d, _, e, _ := newTestDispatcher(nil)
	sel := map[string]string{"titles": "h1"}

	res, err := d.Dispatch(context.Background(), models.ScrapeRequest{URL: "https://example.com", Mode: models.ModeAdvanced, Selectors: sel})
	require.NoError(t, err)
	assert.Equal(t, sel, e.selectors)
	assert.NotNil(t, res.Advanced)
}

func TestDispatch_GenerateDefaultsRequirements(t *testing.T) {
	d, f, e, g := newTestDispatcher(nil)

	res, err := d.Dispatch(context.Background(), models.ScrapeRequest{URL: "https://example.com", Mode: models.ModeGenerate})
	require.NoError(t, err)

	assert.Equal(t, models.DefaultRequirements, g.requirements)
	require.NotNil(t, res.Generated)
	assert.Equal(t, "console.log(1)", res.Generated.Script)
	assert.Zero(t, f.calls)
	assert.Zero(t, e.calls)
}

func TestDispatch_UnknownMode(t *testing.T) {
	d, _, _, _ := newTestDispatcher(nil)
	_, err := d.Dispatch(context.Background(), models.ScrapeRequest{URL: "https://example.com", Mode: "turbo"})
	assert.True(t, models.IsCode(err, models.ErrCodeValidation))
}
