package collect

import (
	"context"
	"errors"
	"testing"

	"github.com/dszqbsm/jobcrawler/browser"
	"github.com/dszqbsm/jobcrawler/browser/browsertest"
	"github.com/dszqbsm/jobcrawler/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const consentPage = `<html><body>
<button>Manage</button>
<button id="onetrust-accept-btn-handler">Accept All Cookies</button>
<div id="content">listing</div>
</body></html>`

func page(next string) string {
	nav := ""
	if next != "" {
		nav = `<nav role="navigation"><a aria-label="Previous Page" href="/prev">prev</a><a aria-label="Next Page" href="` + next + `">next</a></nav>`
	}
	return `<html><body><div>results</div>` + nav + `</body></html>`
}

func noPause() Option {
	return WithPacer(browser.Pacer{})
}

func TestFindConsentControl(t *testing.T) {
	tests := []struct {
		name    string
		content string
		labels  []string
		want    string
		wantOK  bool
	}{
		{"english", consentPage, []string{"All Cookies"}, `button[id="onetrust-accept-btn-handler"]`, true},
		{"french", `<button id="ok">Accepter les cookies</button>`, []string{"All Cookies", "les cookies"}, `button[id="ok"]`, true},
		{"no id", `<button>Accept All Cookies</button>`, []string{"All Cookies"}, "", false},
		{"no match", `<button id="x">Continue</button>`, []string{"All Cookies"}, "", false},
		{"first wins", `<button id="a">All Cookies</button><button id="b">All Cookies</button>`, []string{"All Cookies"}, `button[id="a"]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindConsentControl(tt.content, tt.labels)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoaderConsentOncePerSession(t *testing.T) {
	sel := `button[id="onetrust-accept-btn-handler"]`
	s := browsertest.NewSession(map[string]string{
		"https://fr.example.com/a": consentPage,
		"https://fr.example.com/b": consentPage,
	})
	s.Clickable[sel] = true
	s.AfterClick[sel] = `<html><body><div id="content">after consent</div></body></html>`

	l := NewLoader(s, noPause())
	ctx := context.Background()

	p, err := l.Load(ctx, "https://fr.example.com/a")
	require.NoError(t, err)
	assert.Contains(t, p.Content, "after consent")
	assert.Equal(t, "https://fr.example.com/a", p.URL)
	assert.True(t, l.ConsentHandled())

	_, err = l.Load(ctx, "https://fr.example.com/b")
	require.NoError(t, err)
	assert.Equal(t, 1, s.ClickCount(sel))
}

func TestLoaderConsentFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()

	t.Run("missing control", func(t *testing.T) {
		s := browsertest.NewSession(map[string]string{"u": page("")})
		l := NewLoader(s, noPause())
		p, err := l.Load(ctx, "u")
		require.NoError(t, err)
		assert.Contains(t, p.Content, "results")
		assert.True(t, l.ConsentHandled())
	})

	t.Run("not clickable", func(t *testing.T) {
		s := browsertest.NewSession(map[string]string{"u": consentPage})
		l := NewLoader(s, noPause())
		_, err := l.Load(ctx, "u")
		require.NoError(t, err)
		assert.Empty(t, s.Clicks)
	})

	t.Run("click error", func(t *testing.T) {
		s := browsertest.NewSession(map[string]string{"u": consentPage})
		s.Clickable[`button[id="onetrust-accept-btn-handler"]`] = true
		s.ClickErr = errors.New("detached")
		l := NewLoader(s, noPause())
		_, err := l.Load(ctx, "u")
		require.NoError(t, err)
	})
}

func TestLoaderErrors(t *testing.T) {
	s := browsertest.NewSession(map[string]string{"empty": "  "})
	s.Fail["down"] = errors.New("net::ERR_CONNECTION_REFUSED")
	l := NewLoader(s, noPause())

	_, err := l.Load(context.Background(), "down")
	assert.Error(t, err)

	_, err = l.Load(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestSearchURL(t *testing.T) {
	assert.Equal(t, "https://fr.indeed.com/jobs?q=d%C3%A9veloppeur+web&fromage=1",
		SearchURL("https://fr.indeed.com/", "développeur web", 1))
	assert.Equal(t, "https://uk.indeed.com/jobs?q=UX%2FUI+designer&fromage=3",
		SearchURL("https://uk.indeed.com", "UX/UI designer", 3))
}

func TestNextPageURL(t *testing.T) {
	tests := []struct {
		name string
		page model.RawPage
		want string
	}{
		{"relative", model.RawPage{URL: "https://fr.indeed.com/jobs?q=data", Content: page("/jobs?q=data&start=10")}, "https://fr.indeed.com/jobs?q=data&start=10"},
		{"absolute", model.RawPage{URL: "https://fr.indeed.com/jobs", Content: page("https://fr.indeed.com/jobs?start=20")}, "https://fr.indeed.com/jobs?start=20"},
		{"last page", model.RawPage{URL: "https://fr.indeed.com/jobs", Content: page("")}, ""},
		{"outside nav", model.RawPage{URL: "https://fr.indeed.com/jobs", Content: `<a aria-label="Next Page" href="/x">n</a>`}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextPageURL(tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func collectPages(t *testing.T, w *Walker, ctx context.Context, base, kw string) ([]model.RawPage, error) {
	t.Helper()
	var pages []model.RawPage
	for p, err := range w.Walk(ctx, base, kw, 1) {
		if err != nil {
			return pages, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func TestWalker(t *testing.T) {
	const base = "https://fr.indeed.com"
	first := SearchURL(base, "data", 1)

	t.Run("follows next links", func(t *testing.T) {
		s := browsertest.NewSession(map[string]string{
			first:                                  page("/jobs?q=data&fromage=1&start=10"),
			base + "/jobs?q=data&fromage=1&start=10": page("/jobs?q=data&fromage=1&start=20"),
			base + "/jobs?q=data&fromage=1&start=20": page(""),
		})
		w := NewWalker(NewLoader(s, noPause()))
		pages, err := collectPages(t, w, context.Background(), base, "data")
		require.NoError(t, err)
		assert.Len(t, pages, 3)
		assert.Equal(t, first, pages[0].URL)
		assert.Len(t, s.Visited, 3)
	})

	t.Run("navigation error ends walk", func(t *testing.T) {
		s := browsertest.NewSession(map[string]string{first: page("/jobs?start=10")})
		s.Fail[base+"/jobs?start=10"] = errors.New("timeout")
		w := NewWalker(NewLoader(s, noPause()))
		pages, err := collectPages(t, w, context.Background(), base, "data")
		assert.Error(t, err)
		assert.Len(t, pages, 1)
	})

	t.Run("revisit stops", func(t *testing.T) {
		loop := base + "/jobs?start=10"
		s := browsertest.NewSession(map[string]string{first: page(loop), loop: page(loop)})
		w := NewWalker(NewLoader(s, noPause()))
		pages, err := collectPages(t, w, context.Background(), base, "data")
		require.NoError(t, err)
		assert.Len(t, pages, 2)
	})

	t.Run("max pages", func(t *testing.T) {
		s := browsertest.NewSession(map[string]string{first: page("/jobs?start=10"), base + "/jobs?start=10": page("")})
		w := NewWalker(NewLoader(s, noPause()), WithMaxPages(1))
		pages, err := collectPages(t, w, context.Background(), base, "data")
		require.NoError(t, err)
		assert.Len(t, pages, 1)
		assert.Len(t, s.Visited, 1)
	})

	t.Run("lazy", func(t *testing.T) {
		s := browsertest.NewSession(map[string]string{first: page("/jobs?start=10"), base + "/jobs?start=10": page("")})
		w := NewWalker(NewLoader(s, noPause()))
		for range w.Walk(context.Background(), base, "data", 1) {
			break
		}
		assert.Len(t, s.Visited, 1)
	})
}

func TestDescriptionFetcher(t *testing.T) {
	s := browsertest.NewSession(map[string]string{
		"https://fr.indeed.com/viewjob?jk=a1": `<html><div id="jobDescriptionText"> Build pipelines </div></html>`,
		"https://fr.indeed.com/viewjob?jk=b2": `<html><div id="other">nothing</div></html>`,
	})
	s.Fail["https://fr.indeed.com/viewjob?jk=c3"] = errors.New("timeout")
	f := NewDescriptionFetcher(NewLoader(s, noPause()), noPause())

	ds, err := f.FetchAll(context.Background(), []model.DetailTarget{
		{ID: "a1", URL: "https://fr.indeed.com/viewjob?jk=a1"},
		{ID: "b2", URL: "https://fr.indeed.com/viewjob?jk=b2"},
		{ID: "c3", URL: "https://fr.indeed.com/viewjob?jk=c3"},
	})
	require.NoError(t, err)
	require.Len(t, ds, 3)
	require.NotNil(t, ds[0].Text)
	assert.Equal(t, "Build pipelines", *ds[0].Text)
	assert.Nil(t, ds[1].Text)
	assert.Nil(t, ds[2].Text)
	assert.Equal(t, "c3", ds[2].ID)
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    *string
	}{
		{"present", `<div id="jobDescriptionText">Lead the team</div>`, model.String("Lead the team")},
		{"missing", `<div id="other">x</div>`, nil},
		{"empty", `<div id="jobDescriptionText"></div>`, nil},
		{"blank", "<div id=\"jobDescriptionText\"> \u00a0 <p> </p></div>", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDescription(tt.content))
		})
	}
}

func TestFetchAllCancelled(t *testing.T) {
	s := browsertest.NewSession(nil)
	f := NewDescriptionFetcher(NewLoader(s, noPause()), noPause())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ds, err := f.FetchAll(ctx, []model.DetailTarget{{ID: "a1", URL: "u"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ds)
	assert.Empty(t, s.Visited)
}
