package service

import "github.com/henrib/lumen/internal/domain"

// StaticSiteContent serves the fixed pages that describe the portfolio
// itself, so the assistant can answer questions about the site and its
// owner without a database row backing them.
type StaticSiteContent struct {
	pages []domain.SitePage
}

// NewStaticSiteContent returns the default page set, optionally extended
// with extra pages.
func NewStaticSiteContent(extra ...domain.SitePage) *StaticSiteContent {
	pages := []domain.SitePage{
		{
			Slug:  "about",
			Title: "About this portfolio",
			Body: "This site is a personal AI learning portfolio. It tracks a structured " +
				"learning roadmap, a log of learning entries, and uploaded study documents. " +
				"An assistant answers questions grounded in this indexed content.",
		},
		{
			Slug:  "how-it-works",
			Title: "How the assistant works",
			Body: "Questions are answered using retrieval augmented generation. Content is " +
				"split into chunks, embedded as vectors, and searched by cosine similarity. " +
				"When vector search is unavailable or weak, a keyword search over titles and " +
				"content fills in, together with the current roadmap status.",
		},
	}
	pages = append(pages, extra...)
	return &StaticSiteContent{pages: pages}
}

// Pages returns all site pages.
func (s *StaticSiteContent) Pages() []domain.SitePage {
	return s.pages
}
