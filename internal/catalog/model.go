package catalog

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Product struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Brand       string    `json:"brand"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Images      []string  `json:"images"`
	Categories  []string  `json:"categories"`
	Variants    []Variant `json:"variants,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	Featured    bool      `json:"featured,omitempty"`
}

// Variant is one purchasable colour and size of a product.
type Variant struct {
	ID     string   `json:"_id"`
	Color  string   `json:"color"`
	Size   string   `json:"size"`
	Price  int64    `json:"price"`
	Stock  int      `json:"stock"`
	Images []string `json:"images,omitempty"`
}

func (p *Product) FindVariant(size, color string) *Variant {
	for i := range p.Variants {
		v := &p.Variants[i]
		if v.Size == size && (color == "" || strings.EqualFold(v.Color, color)) {
			return v
		}
	}
	return nil
}

// Sizes lists the distinct sizes in variant order.
func (p *Product) Sizes() []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range p.Variants {
		if !seen[v.Size] {
			seen[v.Size] = true
			out = append(out, v.Size)
		}
	}
	return out
}

func (p *Product) InStock() bool {
	for _, v := range p.Variants {
		if v.Stock > 0 {
			return true
		}
	}
	return false
}

// Query filters a product listing. Zero values are left out.
type Query struct {
	Page       int
	Limit      int
	Search     string
	Categories []string
	Brand      string
	Sort       string
	MinPrice   int64
	MaxPrice   int64
	Sizes      []string
}

func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		v.Set("q", s)
	}
	if len(q.Categories) > 0 {
		v.Set("categories", strings.Join(q.Categories, ","))
	}
	if q.Brand != "" {
		v.Set("brand", q.Brand)
	}
	if q.Sort != "" {
		v.Set("sortBy", q.Sort)
	}
	if q.MinPrice > 0 {
		v.Set("minPrice", strconv.FormatInt(q.MinPrice, 10))
	}
	if q.MaxPrice > 0 {
		v.Set("maxPrice", strconv.FormatInt(q.MaxPrice, 10))
	}
	if len(q.Sizes) > 0 {
		v.Set("sizes", strings.Join(q.Sizes, ","))
	}
	return v
}

// Key identifies the query for the stale-response guard.
func (q Query) Key() string {
	return "products?" + q.Values().Encode()
}

type Pagination struct {
	CurrentPage   int `json:"currentPage"`
	TotalPages    int `json:"totalPages"`
	TotalProducts int `json:"totalProducts"`
}

type Page struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

type PriceRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

type FilterOptions struct {
	Brands     []string   `json:"brands"`
	Categories []string   `json:"categories"`
	Sizes      []string   `json:"sizes"`
	Colors     []string   `json:"colors"`
	Materials  []string   `json:"materials"`
	Types      []string   `json:"types"`
	PriceRange PriceRange `json:"priceRange"`
}

// ----------------- Reviews -----------------

type Review struct {
	ID        string    `json:"_id"`
	Rating    int       `json:"rating"`
	Title     string    `json:"title"`
	Comment   string    `json:"comment"`
	Helpful   int       `json:"helpful"`
	Verified  bool      `json:"verified,omitempty"`
	User      Reviewer  `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

type Reviewer struct {
	Name string `json:"name"`
}

type RatingCount struct {
	Rating int `json:"_id"`
	Count  int `json:"count"`
}

type ReviewPage struct {
	Reviews            []Review      `json:"reviews"`
	RatingDistribution []RatingCount `json:"ratingDistribution"`
	TotalReviews       int           `json:"totalReviews"`
	TotalPages         int           `json:"totalPages"`
}

// Average is the mean rating over the distribution, zero without ratings.
func (p *ReviewPage) Average() float64 {
	var total, weighted int
	for _, d := range p.RatingDistribution {
		total += d.Count
		weighted += d.Rating * d.Count
	}
	if total == 0 {
		return 0
	}
	return float64(weighted) / float64(total)
}

type ReviewInput struct {
	Rating  int
	Title   string
	Comment string
	Size    string
	Fit     string
}

type reviewRequest struct {
	ProductID string `json:"productId"`
	Rating    int    `json:"rating"`
	Title     string `json:"title"`
	Comment   string `json:"comment"`
	Size      string `json:"size"`
	Fit       string `json:"fit"`
}

// ----------------- Wishlist -----------------

type WishlistItem struct {
	Product Product   `json:"product"`
	AddedAt time.Time `json:"addedAt"`
}

type wishlistResponse struct {
	Items []WishlistItem `json:"items"`
}

type wishlistRequest struct {
	ProductID string `json:"productId"`
}
