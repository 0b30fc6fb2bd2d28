package models

// SourceTag identifies where a candidate was collected from.
type SourceTag string

const (
	SourceEventbrite          SourceTag = "eventbrite"
	SourceOutsavvy            SourceTag = "outsavvy"
	SourceRSSFeed             SourceTag = "rss_feed"
	SourceWebScraping         SourceTag = "web_scraping"
	SourceCommunitySubmission SourceTag = "community-submission"
)

// String implements fmt.Stringer.
func (s SourceTag) String() string {
	return string(s)
}
