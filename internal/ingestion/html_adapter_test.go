package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/STRATINT/eventfeed/internal/config"
	"github.com/STRATINT/eventfeed/internal/models"
)

const listingPage = `<!doctype html>
<html><body>
  <ul class="events">
    <li class="event">
      <h3 class="title"> Queer   Film Night </h3>
      <a class="more" href="/whats-on/film-night">Details</a>
      <time datetime="2025-11-12T19:30:00Z">12 Nov</time>
      <span class="venue">Rio Cinema, Dalston</span>
      <p class="blurb">Shorts by trans filmmakers.</p>
      <span class="price">£5</span>
      <img src="/img/film.jpg">
    </li>
    <li class="event">
      <h3 class="title"></h3>
      <a href="/whats-on/untitled">Details</a>
    </li>
    <li class="event">
      <h3 class="title">Black Pride Social</h3>
    </li>
    <li class="event">
      <h3 class="title">Overflow item</h3>
    </li>
  </ul>
</body></html>`

func pageConfig(url string) config.PageConfig {
	return config.PageConfig{
		URL:         url,
		Organizer:   "Rio Collective",
		Item:        "li.event",
		Title:       "h3.title",
		Link:        "a.more@href",
		Date:        "time@datetime",
		Location:    ".venue",
		Description: ".blurb",
		Price:       ".price",
		Image:       "img@src",
		Tags:        []string{"film"},
		MaxItems:    2,
	}
}

func TestHTMLAdapter_Collect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/whats-on" {
			http.NotFound(w, r)
			return
		}
		if !strings.Contains(r.Header.Get("User-Agent"), "eventfeed") {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	adapter := NewHTMLAdapter(config.AdapterConfig{
		Name:   "rio",
		Source: string(models.SourceWebScraping),
		Pages:  []config.PageConfig{pageConfig(srv.URL + "/whats-on")},
	}, srv.Client(), nil, discardLogger())

	candidates, err := adapter.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2 (untitled skipped, max items applied)", len(candidates))
	}

	film := candidates[0]
	if film.Title != "Queer Film Night" {
		t.Errorf("title = %q", film.Title)
	}
	if film.SourceURL != srv.URL+"/whats-on/film-night" {
		t.Errorf("source url = %q", film.SourceURL)
	}
	if film.ImageURL != srv.URL+"/img/film.jpg" {
		t.Errorf("image = %q", film.ImageURL)
	}
	if film.Location != "Rio Cinema, Dalston" || film.Price != "£5" || film.OrganizerName != "Rio Collective" {
		t.Errorf("film = %+v", film)
	}
	if film.EventDate == nil || film.EventDate.Hour() != 19 {
		t.Errorf("event date = %v", film.EventDate)
	}
	if len(film.Tags) != 1 || film.Tags[0] != "film" {
		t.Errorf("tags = %v", film.Tags)
	}

	social := candidates[1]
	if social.SourceURL != srv.URL+"/whats-on" {
		t.Errorf("listing without a link should fall back to the page url, got %q", social.SourceURL)
	}
	if social.Description != models.PlaceholderDescription || social.EventDate != nil {
		t.Errorf("social = %+v", social)
	}
}

func TestHTMLAdapter_AllPagesFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	adapter := NewHTMLAdapter(config.AdapterConfig{
		Name:  "gone",
		Pages: []config.PageConfig{pageConfig(srv.URL + "/a")},
	}, srv.Client(), nil, discardLogger())

	if _, err := adapter.Collect(context.Background()); err == nil || !strings.Contains(err.Error(), "410") {
		t.Errorf("Collect() error = %v, want 410 failure", err)
	}
}

func TestSelectValue(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div class="card" data-id="42"><a href="/x"> Read
		more </a></div>`))
	if err != nil {
		t.Fatal(err)
	}
	card := doc.Find(".card")

	tests := []struct {
		expr string
		want string
	}{
		{"a", "Read more"},
		{"a@href", "/x"},
		{"@data-id", "42"},
		{"span", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := selectValue(card, tt.expr); got != tt.want {
			t.Errorf("selectValue(%q) = %q, want %q", tt.expr, got, tt.want)
		}
	}
}
