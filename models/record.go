package models

// Query identifies one harvesting run. Every record it produces is tagged
// with both terms.
type Query struct {
	Location string `json:"location"`
	Term     string `json:"term"`
}

// String renders the query the way log lines and the search box see it.
func (q Query) String() string {
	return q.Location + " " + q.Term
}

// RawRecord is a snapshot of one listing element at extraction time.
// Any field may be empty when the markup for it is absent.
type RawRecord struct {
	Title       string
	Address     string
	Website     string
	Category    string
	Phone       string
	Rating      string
	ReviewsText string

	// PhoneCandidates are text fragments found near the listing that may
	// hold a phone number. The normalizer picks one.
	PhoneCandidates []string
}

// NormalizedRecord is the unit collected by the harvester and written
// downstream. Field order matches the dataset column order.
type NormalizedRecord struct {
	Title      string `json:"title" bson:"title"`
	Address    string `json:"address" bson:"address"`
	Website    string `json:"website" bson:"website"`
	Category   string `json:"category" bson:"category"`
	Phone      string `json:"phone" bson:"phone"`
	Rating     string `json:"rating" bson:"rating"`
	Reviews    string `json:"reviews" bson:"reviews"`
	Location   string `json:"location" bson:"location"`
	SearchTerm string `json:"acategory" bson:"acategory"`
}
