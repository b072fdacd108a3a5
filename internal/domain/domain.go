package domain

import "time"

type PlanType string

const (
	PlanFree PlanType = "free"
	PlanPro  PlanType = "pro"
)

// User is the authenticated identity of a caller.
type User struct {
	ID    string
	Email string
}

type Article struct {
	ID               string     `db:"id"                json:"id"`
	URL              string     `db:"url"               json:"url"`
	Title            string     `db:"title"             json:"title"`
	Author           *string    `db:"author"            json:"author,omitempty"`
	PublishedTime    *time.Time `db:"published_time"    json:"published_time,omitempty"`
	Content          string     `db:"content"           json:"-"`
	FormattedContent string     `db:"formatted_content" json:"-"`
	WordCount        int        `db:"word_count"        json:"word_count"`
	Summary          string     `db:"summary"           json:"summary"`
	Tags             string     `db:"tags"              json:"tags"`
	Provider         string     `db:"provider"          json:"provider"`
	CreatedAt        time.Time  `db:"created_at"        json:"created_at"`
}

type Tag struct {
	ID        int64     `db:"id"`
	UserID    string    `db:"user_id"`
	ArticleID string    `db:"article_id"`
	Tag       string    `db:"tag"`
	CreatedAt time.Time `db:"created_at"`
}

type UserMetadata struct {
	UserID             string    `db:"user_id"`
	Email              string    `db:"email"`
	PlanType           PlanType  `db:"plan_type"`
	SummariesGenerated int       `db:"summaries_generated"`
	BillingCycleStart  time.Time `db:"billing_cycle_start"`
	StripeCustomerID   *string   `db:"stripe_customer_id"`
}

// SavedArticle is an article as seen from one user's library.
type SavedArticle struct {
	Article
	HasRead         bool      `db:"has_read" json:"has_read"`
	Rating          *int      `db:"rating"   json:"rating,omitempty"`
	SavedAt         time.Time `db:"saved_at" json:"saved_at"`
	UserTags        []string  `db:"-"        json:"user_tags"`
	ReadTimeMinutes int       `db:"-"        json:"read_time_minutes"`
}

type RatedArticle struct {
	ArticleID     string  `db:"article_id"     json:"article_id"`
	URL           string  `db:"url"            json:"url"`
	Title         string  `db:"title"          json:"title"`
	AverageRating float64 `db:"average_rating" json:"average_rating"`
	RatingCount   int     `db:"rating_count"   json:"rating_count"`
}

type PopularArticle struct {
	ArticleID string `db:"article_id" json:"article_id"`
	URL       string `db:"url"        json:"url"`
	Title     string `db:"title"      json:"title"`
	SaveCount int    `db:"save_count" json:"save_count"`
}

type Feedback struct {
	ID        int64     `db:"id"`
	UserID    string    `db:"user_id"`
	UserEmail string    `db:"user_email"`
	Category  string    `db:"category"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

// Story is an item of the discover feed.
type Story struct {
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	Published *time.Time `json:"published,omitempty"`
}
