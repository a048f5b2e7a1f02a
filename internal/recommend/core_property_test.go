package recommend

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

// Small id ranges force overlapping requests so peers actually occur.
func exchangeGen() *rapid.Generator[Exchange] {
	return rapid.Custom(func(t *rapid.T) Exchange {
		return Exchange{
			RequesterID: rapid.Int64Range(1, 6).Draw(t, "requester"),
			BookID:      rapid.Int64Range(1, 12).Draw(t, "book"),
			Status:      rapid.SampledFrom([]string{"requested", "accepted"}).Draw(t, "status"),
		}
	})
}

func reviewGen() *rapid.Generator[Review] {
	return rapid.Custom(func(t *rapid.T) Review {
		return Review{
			BookID: rapid.Int64Range(1, 12).Draw(t, "book"),
			UserID: rapid.Int64Range(1, 6).Draw(t, "user"),
			Rating: rapid.IntRange(1, 5).Draw(t, "rating"),
		}
	})
}

func TestPropertyMeanWithinRatingBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reviews := rapid.SliceOf(reviewGen()).Draw(t, "reviews")
		means := MeanRatings(reviews)

		seen := map[int64]bool{}
		for _, r := range reviews {
			seen[r.BookID] = true
		}
		if len(means) != len(seen) {
			t.Fatalf("got means for %d books, want %d", len(means), len(seen))
		}
		for id, m := range means {
			if m < 1 || m > 5 {
				t.Fatalf("book %d mean %v outside [1,5]", id, m)
			}
		}
	})
}

func TestPropertyNeverSelfPeer(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		exchanges := rapid.SliceOf(exchangeGen()).Draw(t, "exchanges")
		target := rapid.Int64Range(1, 6).Draw(t, "target")

		if FindPeers(target, exchanges).Contains(target) {
			t.Fatalf("user %d is their own peer", target)
		}
	})
}

func TestPropertyNeverRecommendsRequestedBooks(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		exchanges := rapid.SliceOf(exchangeGen()).Draw(t, "exchanges")
		reviews := rapid.SliceOf(reviewGen()).Draw(t, "reviews")
		target := rapid.Int64Range(1, 6).Draw(t, "target")

		read := map[int64]bool{}
		for _, e := range exchanges {
			if e.RequesterID == target {
				read[e.BookID] = true
			}
		}
		for _, r := range Recommend(target, exchanges, reviews) {
			if read[r.BookID] {
				t.Fatalf("recommended book %d already requested by %d", r.BookID, target)
			}
		}
	})
}

func TestPropertyOrderedAndBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		exchanges := rapid.SliceOf(exchangeGen()).Draw(t, "exchanges")
		reviews := rapid.SliceOf(reviewGen()).Draw(t, "reviews")
		target := rapid.Int64Range(1, 6).Draw(t, "target")

		recs := Recommend(target, exchanges, reviews)
		if recs == nil {
			t.Fatal("nil result")
		}
		seen := map[int64]bool{}
		for i, r := range recs {
			if seen[r.BookID] {
				t.Fatalf("book %d listed twice", r.BookID)
			}
			seen[r.BookID] = true
			if r.Score < 0 || r.Score > 5 || math.IsNaN(r.Score) {
				t.Fatalf("score %v out of range", r.Score)
			}
			if i == 0 {
				continue
			}
			prev := recs[i-1]
			if prev.Score < r.Score || (prev.Score == r.Score && prev.BookID > r.BookID) {
				t.Fatalf("out of order at %d: %+v before %+v", i, prev, r)
			}
		}
	})
}

func TestPropertyIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		exchanges := rapid.SliceOf(exchangeGen()).Draw(t, "exchanges")
		reviews := rapid.SliceOf(reviewGen()).Draw(t, "reviews")
		target := rapid.Int64Range(1, 6).Draw(t, "target")

		a := Recommend(target, exchanges, reviews)
		b := Recommend(target, exchanges, reviews)
		if len(a) != len(b) {
			t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("results differ at %d: %+v vs %+v", i, a[i], b[i])
			}
		}
	})
}

func TestPropertyNoExchangesNoRecommendations(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reviews := rapid.SliceOf(reviewGen()).Draw(t, "reviews")
		target := rapid.Int64Range(1, 6).Draw(t, "target")

		if recs := Recommend(target, nil, reviews); len(recs) != 0 {
			t.Fatalf("got %d recommendations from no exchanges", len(recs))
		}
	})
}
