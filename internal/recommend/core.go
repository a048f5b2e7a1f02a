// Package recommend ranks unread books for a user from the exchange and
// rating history of users with overlapping requests.
package recommend

import "sort"

// Exchange is the slice of an exchange the ranker needs.
type Exchange struct {
	ID          int64  `db:"id"`
	RequesterID int64  `db:"requester_id"`
	AccepterID  *int64 `db:"accepter_id"`
	BookID      int64  `db:"book_id"`
	Status      string `db:"status"`
}

// Review is one rating of a book. Ratings are taken as-is.
type Review struct {
	ID      int64   `db:"id"`
	BookID  int64   `db:"book_id"`
	UserID  int64   `db:"user_id"`
	Rating  int     `db:"rating"`
	Comment *string `db:"comment"`
}

// Recommendation is a book and its predicted score.
type Recommendation struct {
	BookID int64   `json:"bookId"`
	Score  float64 `json:"score"`
}

// PeerSet is a set of user ids.
type PeerSet map[int64]struct{}

// Contains reports whether id is in the set.
func (s PeerSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s PeerSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MeanRatings returns the mean rating of every book that has at least one
// review.
func MeanRatings(reviews []Review) map[int64]float64 {
	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, r := range reviews {
		sums[r.BookID] += float64(r.Rating)
		counts[r.BookID]++
	}

	means := make(map[int64]float64, len(sums))
	for id, sum := range sums {
		means[id] = sum / float64(counts[id])
	}
	return means
}

// ScoreOf returns the mean rating of bookID, or 0 when it has none.
func ScoreOf(ratings map[int64]float64, bookID int64) float64 {
	return ratings[bookID]
}

// requestedBy returns the set of books target has requested.
func requestedBy(target int64, exchanges []Exchange) map[int64]struct{} {
	books := make(map[int64]struct{})
	for _, e := range exchanges {
		if e.RequesterID == target {
			books[e.BookID] = struct{}{}
		}
	}
	return books
}

// FindPeers returns every other user who requested at least one book that
// target also requested.
func FindPeers(target int64, exchanges []Exchange) PeerSet {
	read := requestedBy(target, exchanges)
	peers := make(PeerSet)
	for _, e := range exchanges {
		if e.RequesterID == target {
			continue
		}
		if _, ok := read[e.BookID]; ok {
			peers[e.RequesterID] = struct{}{}
		}
	}
	return peers
}

// PeerBooks returns the books peer requested in input order, repeats
// included.
func PeerBooks(peer int64, exchanges []Exchange) []int64 {
	var books []int64
	for _, e := range exchanges {
		if e.RequesterID == peer {
			books = append(books, e.BookID)
		}
	}
	return books
}

// Recommend ranks the books requested by target's peers that target has not
// requested. A book's score is the mean, over every time a peer requested
// it, of its mean rating. Results are ordered by score descending, then
// book id ascending. The result is never nil.
func Recommend(target int64, exchanges []Exchange, reviews []Review) []Recommendation {
	read := requestedBy(target, exchanges)
	ratings := MeanRatings(reviews)

	byRequester := make(map[int64][]int64)
	for _, e := range exchanges {
		byRequester[e.RequesterID] = append(byRequester[e.RequesterID], e.BookID)
	}

	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, peer := range FindPeers(target, exchanges).Sorted() {
		for _, bookID := range byRequester[peer] {
			if _, ok := read[bookID]; ok {
				continue
			}
			sums[bookID] += ScoreOf(ratings, bookID)
			counts[bookID]++
		}
	}

	recs := make([]Recommendation, 0, len(sums))
	for bookID, sum := range sums {
		recs = append(recs, Recommendation{BookID: bookID, Score: sum / float64(counts[bookID])})
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].BookID < recs[j].BookID
	})
	return recs
}
