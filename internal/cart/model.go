package cart

// Key is the uniqueness key of a cart line.
type Key struct {
	VariantID string
	Size      string
}

// Line is one (variant, size) entry. Price is the unit price in minor units
// as of the last sync.
type Line struct {
	VariantID   string `json:"variantId"`
	ProductID   string `json:"productId,omitempty"`
	ProductName string `json:"name,omitempty"`
	VariantName string `json:"variantName,omitempty"`
	Size        string `json:"size"`
	Quantity    int    `json:"qty"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock,omitempty"`
	ImageURL    string `json:"image,omitempty"`
}

func (l Line) Key() Key {
	return Key{VariantID: l.VariantID, Size: l.Size}
}

func (l Line) Subtotal() int64 {
	return int64(l.Quantity) * l.Price
}

type lineRequest struct {
	VariantID string `json:"variantId"`
	Size      string `json:"size"`
	Quantity  int    `json:"qty,omitempty"`
}

type cartResponse struct {
	Items []Line `json:"items"`
}
